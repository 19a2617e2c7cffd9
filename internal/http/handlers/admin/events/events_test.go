package events

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/premium-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/premium-access/internal/http/request"
	"github.com/magabrotheeeer/premium-access/internal/models"
	"github.com/magabrotheeeer/premium-access/internal/services/billing"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) ListEvents(ctx context.Context, principal models.Principal, unprocessedOnly bool, limit, offset int) ([]*models.ProcessedEvent, error) {
	args := m.Called(ctx, principal, unprocessedOnly, limit, offset)
	e, _ := args.Get(0).([]*models.ProcessedEvent)
	return e, args.Error(1)
}

func (m *ServiceMock) Replay(ctx context.Context, principal models.Principal, eventID string) (billing.Result, error) {
	args := m.Called(ctx, principal, eventID)
	return args.Get(0).(billing.Result), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var (
	admin = models.Principal{ID: "3e1c2b4a-5d6f-4a7b-8c9d-0e1f2a3b4c5d", Role: models.RoleAdmin}
	user  = models.Principal{ID: "8a3f0f7e-2c41-4f7e-9f55-1d7d1f6b2a10", Role: models.RoleAuthenticated}
)

func TestListHandler(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		principal  models.Principal
		setupMock  func(m *ServiceMock)
		wantStatus int
		wantBody   string
	}{
		{
			name:      "admin sees unprocessed events",
			url:       "/api/v1/admin/events?unprocessed=true",
			principal: admin,
			setupMock: func(m *ServiceMock) {
				m.On("ListEvents", mock.Anything, admin, true, request.DefaultLimit, 0).
					Return([]*models.ProcessedEvent{{EventID: "evt_1", Type: "invoice.paid", Error: "boom"}}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `"event_id":"evt_1"`,
		},
		{
			name:      "regular user gets empty list",
			url:       "/api/v1/admin/events",
			principal: user,
			setupMock: func(m *ServiceMock) {
				m.On("ListEvents", mock.Anything, user, false, request.DefaultLimit, 0).
					Return([]*models.ProcessedEvent{}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `"events":[]`,
		},
		{
			name:       "bad flag",
			url:        "/api/v1/admin/events?unprocessed=maybe",
			principal:  admin,
			setupMock:  func(_ *ServiceMock) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			req = req.WithContext(middlewarectx.WithPrincipal(req.Context(), tt.principal))
			w := httptest.NewRecorder()
			NewList(newNoopLogger(), svc).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestReplayHandler(t *testing.T) {
	tests := []struct {
		name       string
		principal  models.Principal
		result     billing.Result
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "applied",
			principal:  admin,
			result:     billing.Result{EventID: "evt_1", Kind: billing.KindInvoicePaymentFailed, Outcome: billing.OutcomeApplied},
			wantStatus: http.StatusOK,
			wantBody:   `"outcome":"applied"`,
		},
		{
			name:       "already processed",
			principal:  admin,
			result:     billing.Result{EventID: "evt_1", Outcome: billing.OutcomeDuplicate},
			wantStatus: http.StatusOK,
			wantBody:   `"outcome":"duplicate"`,
		},
		{
			name:       "regular user",
			principal:  user,
			err:        fmt.Errorf("billing.Reconciler.Replay: %w", models.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantBody:   `"error":"not found"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			svc.On("Replay", mock.Anything, tt.principal, "evt_1").Return(tt.result, tt.err).Once()

			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/events/evt_1/replay", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", "evt_1")
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			req = req.WithContext(middlewarectx.WithPrincipal(ctx, tt.principal))
			w := httptest.NewRecorder()
			NewReplay(newNoopLogger(), svc).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}
