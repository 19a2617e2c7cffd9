// Package services отвечает на вопрос, есть ли у субъекта активная подписка,
// и отдаёт владельцу его собственное состояние подписки.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/premium-access/internal/access"
	"github.com/magabrotheeeer/premium-access/internal/lib/sl"
	"github.com/magabrotheeeer/premium-access/internal/models"
)

// StateRepository читает записи состояний подписок.
type StateRepository interface {
	// ListSubscriptionStates возвращает записи субъекта, самые свежие первыми.
	ListSubscriptionStates(ctx context.Context, principalID string) ([]*models.SubscriptionState, error)
}

// Status сводка по подписке для владельца.
type Status struct {
	Status models.SubscriptionStatus `json:"status"`
	Active bool                      `json:"active"`
	State  *models.SubscriptionState `json:"state,omitempty"`
}

// SubscriptionService вычисляет активность подписки на момент запроса, без кеша.
type SubscriptionService struct {
	repo      StateRepository
	evaluator *access.Evaluator
	log       *slog.Logger
	now       func() time.Time
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(repo StateRepository, evaluator *access.Evaluator, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:      repo,
		evaluator: evaluator,
		log:       log,
		now:       time.Now,
	}
}

// HasActiveSubscription сообщает, есть ли у субъекта активная подписка прямо сейчас.
// Отсутствие записей - false; ошибка хранилища тоже false (закрыто по умолчанию).
func (s *SubscriptionService) HasActiveSubscription(ctx context.Context, principalID string) bool {
	states, err := s.repo.ListSubscriptionStates(ctx, principalID)
	if err != nil {
		s.log.Error("failed to read subscription state, treating as inactive",
			slog.String("principal_id", principalID), sl.Err(err))
		return false
	}
	_, active := pick(states, s.now())
	return active
}

// GetSubscriptionStatus возвращает статус подписки или "none", если записи нет.
func (s *SubscriptionService) GetSubscriptionStatus(ctx context.Context, principalID string) string {
	states, err := s.repo.ListSubscriptionStates(ctx, principalID)
	if err != nil {
		s.log.Error("failed to read subscription state",
			slog.String("principal_id", principalID), sl.Err(err))
		return string(models.StatusNone)
	}
	st, _ := pick(states, s.now())
	if st == nil {
		return string(models.StatusNone)
	}
	return string(st.Status)
}

// Current возвращает состояние подписки вызывающего. Чужие строки отбрасываются политикой.
func (s *SubscriptionService) Current(ctx context.Context, principal models.Principal) (*Status, error) {
	if !principal.Valid() {
		return &Status{Status: models.StatusNone}, nil
	}
	states, err := s.repo.ListSubscriptionStates(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	states = access.Filter(s.evaluator,
		access.Request{Principal: principal, Table: access.TableSubscriptionStates, Op: access.OpSelect},
		states,
		func(req access.Request, st *models.SubscriptionState) access.Request {
			req.OwnerID = st.PrincipalID
			return req
		})

	st, active := pick(states, s.now())
	if st == nil {
		return &Status{Status: models.StatusNone}, nil
	}
	return &Status{Status: st.Status, Active: active, State: st}, nil
}

// pick выбирает запись, дающую доступ, а если такой нет - самую свежую.
func pick(states []*models.SubscriptionState, now time.Time) (*models.SubscriptionState, bool) {
	for _, st := range states {
		if st.HasActiveAccess(now) {
			return st, true
		}
	}
	if len(states) == 0 {
		return nil, false
	}
	return states[0], false
}
