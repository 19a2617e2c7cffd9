package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/premium-access/internal/access"
	"github.com/magabrotheeeer/premium-access/internal/migrations"
	"github.com/magabrotheeeer/premium-access/internal/models"
	"github.com/magabrotheeeer/premium-access/internal/services/billing"
)

const (
	freeCourseID    = "00000000-0000-4000-8000-000000000001"
	premiumCourseID = "00000000-0000-4000-8000-000000000002"
)

func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.DB.Close() })

	root, err := filepath.Abs("../../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, filepath.Join(root, "migrations")))
	require.NoError(t, storage.CheckDatabaseReady(ctx))
	return storage
}

func TestStorage_Profiles(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()
	principalID := uuid.NewString()

	p, err := s.CreateProfile(ctx, principalID, models.DummyProfile{Username: "alice", FullName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, principalID, p.AuthPrincipalID)
	assert.NotEmpty(t, p.ID)

	_, err = s.CreateProfile(ctx, principalID, models.DummyProfile{Username: "alice2"})
	assert.ErrorIs(t, err, models.ErrAlreadyExists)
	_, err = s.CreateProfile(ctx, uuid.NewString(), models.DummyProfile{Username: "alice"})
	assert.ErrorIs(t, err, models.ErrAlreadyExists)

	got, err := s.GetProfileByPrincipal(ctx, principalID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	updated, err := s.UpdateProfile(ctx, p.ID, models.DummyProfile{Username: "alice", FullName: "Alice A."})
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", updated.FullName)

	_, err = s.GetProfile(ctx, uuid.NewString())
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.GetProfile(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStorage_Likes(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()

	a, err := s.CreateProfile(ctx, uuid.NewString(), models.DummyProfile{Username: "user_a"})
	require.NoError(t, err)
	b, err := s.CreateProfile(ctx, uuid.NewString(), models.DummyProfile{Username: "user_b"})
	require.NoError(t, err)

	for _, course := range []string{freeCourseID, premiumCourseID} {
		_, err := s.CreateLike(ctx, a.ID, course)
		require.NoError(t, err)
	}
	_, err = s.CreateLike(ctx, b.ID, freeCourseID)
	require.NoError(t, err)
	_, err = s.CreateLike(ctx, a.ID, freeCourseID)
	require.NoError(t, err, "repeated like is idempotent")

	_, err = s.CreateLike(ctx, a.ID, uuid.NewString())
	assert.ErrorIs(t, err, models.ErrNotFound)

	all, err := s.ListLikes(ctx, models.LikeFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	onlyA, err := s.ListLikes(ctx, models.LikeFilter{UserID: &a.ID}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)

	n, err := s.RemoveLike(ctx, a.ID, premiumCourseID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.RemoveLike(ctx, a.ID, premiumCourseID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStorage_Courses(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()

	list, err := s.ListCourses(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	c, err := s.GetCourse(ctx, premiumCourseID)
	require.NoError(t, err)
	assert.True(t, c.Premium)

	_, err = s.GetCourse(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func newReconciler(s *Storage) *billing.Reconciler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return billing.NewReconciler(s, access.NewEvaluator(nil), log)
}

func handle(t *testing.T, r *billing.Reconciler, body string) billing.Result {
	t.Helper()
	env, err := billing.ParseEnvelope([]byte(body))
	require.NoError(t, err)
	res, err := r.Handle(context.Background(), env, []byte(body))
	require.NoError(t, err)
	return res
}

func TestStorage_ReconcilerRoundTrip(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()
	r := newReconciler(s)
	principalID := uuid.NewString()
	end := time.Now().Add(7 * 24 * time.Hour).Unix()

	created := `{"id":"evt_1","type":"customer.subscription.created","created":1700000000,
		"data":{"object":{"id":"sub_1","customer":"cus_1","status":"trialing","current_period_end":` +
		strconv.FormatInt(end, 10) + `,"metadata":{"principal_id":"` + principalID + `"}}}}`

	assert.Equal(t, billing.OutcomeApplied, handle(t, r, created).Outcome)
	assert.Equal(t, billing.OutcomeDuplicate, handle(t, r, created).Outcome)

	var events, states int
	require.NoError(t, s.DB.QueryRow(`SELECT COUNT(*) FROM processed_events`).Scan(&events))
	require.NoError(t, s.DB.QueryRow(`SELECT COUNT(*) FROM subscription_states`).Scan(&states))
	assert.Equal(t, 1, events)
	assert.Equal(t, 1, states)

	list, err := s.ListSubscriptionStates(ctx, principalID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].HasActiveAccess(time.Now()))

	failed := `{"id":"evt_2","type":"invoice.payment_failed","created":1700000100,
		"data":{"object":{"id":"in_1","subscription":"sub_1","customer":"cus_1"}}}`
	assert.Equal(t, billing.OutcomeApplied, handle(t, r, failed).Outcome)

	list, err = s.ListSubscriptionStates(ctx, principalID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPastDue, list[0].Status)
	assert.False(t, list[0].HasActiveAccess(time.Now()))
}

func TestStorage_UnappliedEventKeptForReplay(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()
	r := newReconciler(s)

	body := `{"id":"evt_orphan","type":"customer.subscription.created","created":1700000000,
		"data":{"object":{"id":"sub_orphan","customer":"cus_orphan","status":"active"}}}`
	res := handle(t, r, body)
	assert.Equal(t, billing.OutcomeUnapplied, res.Outcome)

	n, err := s.CountUnprocessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := s.ListEvents(ctx, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.False(t, pending[0].Processed)
	assert.NotEmpty(t, pending[0].Error)
	assert.JSONEq(t, body, string(pending[0].Payload))

	var states int
	require.NoError(t, s.DB.QueryRow(`SELECT COUNT(*) FROM subscription_states`).Scan(&states))
	assert.Zero(t, states)

	_, err = r.Replay(ctx, models.ServicePrincipal(), "evt_orphan")
	require.NoError(t, err)
	n, err = s.CountUnprocessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "still unresolvable principal")
}

func TestStorage_ConcurrentDelivery(t *testing.T) {
	s := setupTestDatabase(t)
	r := newReconciler(s)
	principalID := uuid.NewString()

	body := `{"id":"evt_race","type":"customer.subscription.created","created":1700000000,
		"data":{"object":{"id":"sub_race","status":"active","metadata":{"principal_id":"` + principalID + `"}}}}`

	const workers = 5
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[billing.Outcome]int{}
		errs     []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env, err := billing.ParseEnvelope([]byte(body))
			if err == nil {
				var res billing.Result
				res, err = r.Handle(context.Background(), env, []byte(body))
				mu.Lock()
				outcomes[res.Outcome]++
				mu.Unlock()
			}
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.NoError(t, errors.Join(errs...))
	assert.Equal(t, 1, outcomes[billing.OutcomeApplied])
	assert.Equal(t, workers-1, outcomes[billing.OutcomeDuplicate])
}

func TestStorage_ConcurrentEventsForNewSubscription(t *testing.T) {
	s := setupTestDatabase(t)
	r := newReconciler(s)

	const rounds = 5
	for i := 0; i < rounds; i++ {
		principalID := uuid.NewString()
		ref := "sub_new_" + strconv.Itoa(i)
		meta := `"metadata":{"principal_id":"` + principalID + `"}`
		bodies := []string{
			`{"id":"evt_created_` + strconv.Itoa(i) + `","type":"customer.subscription.created","created":1700000001,
				"data":{"object":{"id":"` + ref + `","status":"trialing",` + meta + `}}}`,
			`{"id":"evt_updated_` + strconv.Itoa(i) + `","type":"customer.subscription.updated","created":1700000002,
				"data":{"object":{"id":"` + ref + `","status":"active",` + meta + `}}}`,
		}

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			errs []error
		)
		for _, body := range bodies {
			wg.Add(1)
			go func(body string) {
				defer wg.Done()
				env, err := billing.ParseEnvelope([]byte(body))
				if err == nil {
					_, err = r.Handle(context.Background(), env, []byte(body))
				}
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}(body)
		}
		wg.Wait()
		require.NoError(t, errors.Join(errs...))

		states, err := s.ListSubscriptionStates(context.Background(), principalID)
		require.NoError(t, err)
		require.Len(t, states, 1)
		assert.Equal(t, models.StatusActive, states[0].Status, "round %d", i)
		require.NotNil(t, states[0].LastEventAt)
		assert.Equal(t, int64(1700000002), states[0].LastEventAt.Unix(), "round %d", i)
	}
}
