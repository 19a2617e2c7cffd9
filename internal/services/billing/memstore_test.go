package billing

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/magabrotheeeer/premium-access/internal/models"
)

// memStore - транзакционное хранилище в памяти: транзакция работает с копией и
// подменяет данные только при успешном завершении.
type memStore struct {
	mu     sync.Mutex
	events map[string]models.ProcessedEvent
	states map[string]models.SubscriptionState

	failUpsert error
	failMark   error
}

func newMemStore() *memStore {
	return &memStore{
		events: map[string]models.ProcessedEvent{},
		states: map[string]models.SubscriptionState{},
	}
}

func (s *memStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, events: maps.Clone(s.events), states: maps.Clone(s.states)}
	if err := fn(tx); err != nil {
		return err
	}
	s.events, s.states = tx.events, tx.states
	return nil
}

func (s *memStore) ListEvents(_ context.Context, unprocessedOnly bool, limit, offset int) ([]*models.ProcessedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.ProcessedEvent
	for _, ev := range s.events {
		if unprocessedOnly && ev.Processed {
			continue
		}
		e := ev
		result = append(result, &e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EventID < result[j].EventID })
	if offset >= len(result) {
		return []*models.ProcessedEvent{}, nil
	}
	result = result[offset:]
	if limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (s *memStore) CountUnprocessed(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, ev := range s.events {
		if !ev.Processed {
			n++
		}
	}
	return n, nil
}

func (s *memStore) event(id string) (models.ProcessedEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	return ev, ok
}

func (s *memStore) state(ref string) (models.SubscriptionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[ref]
	return st, ok
}

func (s *memStore) counts() (events, states int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events), len(s.states)
}

type memTx struct {
	store  *memStore
	events map[string]models.ProcessedEvent
	states map[string]models.SubscriptionState
}

func (t *memTx) InsertEvent(_ context.Context, ev models.ProcessedEvent) (bool, error) {
	if _, ok := t.events[ev.EventID]; ok {
		return false, nil
	}
	t.events[ev.EventID] = ev
	return true, nil
}

func (t *memTx) GetEventForUpdate(_ context.Context, eventID string) (*models.ProcessedEvent, error) {
	ev, ok := t.events[eventID]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

func (t *memTx) MarkEvent(_ context.Context, eventID string, processed bool, reason string) error {
	if t.store.failMark != nil {
		return t.store.failMark
	}
	ev := t.events[eventID]
	ev.Processed = processed
	ev.Error = reason
	t.events[eventID] = ev
	return nil
}

func (t *memTx) FindStateForUpdate(_ context.Context, ref string) (*models.SubscriptionState, error) {
	st, ok := t.states[ref]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (t *memTx) FindPrincipalByCustomer(_ context.Context, customerRef string) (string, error) {
	for _, st := range t.states {
		if st.CustomerRef == customerRef {
			return st.PrincipalID, nil
		}
	}
	return "", nil
}

func (t *memTx) UpsertState(_ context.Context, st models.SubscriptionState) error {
	if t.store.failUpsert != nil {
		return t.store.failUpsert
	}
	t.states[st.SubscriptionRef] = st
	return nil
}

func (t *memTx) Savepoint(_ context.Context, fn func() error) error {
	events, states := maps.Clone(t.events), maps.Clone(t.states)
	if err := fn(); err != nil {
		t.events, t.states = events, states
		return err
	}
	return nil
}
