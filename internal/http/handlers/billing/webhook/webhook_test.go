package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/premium-access/internal/lib/signature"
	"github.com/magabrotheeeer/premium-access/internal/models"
	"github.com/magabrotheeeer/premium-access/internal/services/billing"
)

type ReconcilerMock struct {
	mock.Mock
}

func (m *ReconcilerMock) Handle(ctx context.Context, env *billing.Envelope, raw []byte) (billing.Result, error) {
	args := m.Called(ctx, env, raw)
	return args.Get(0).(billing.Result), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

const (
	secret = "whsec_test"
	event  = `{"id":"evt_1","type":"customer.subscription.created","created":1741600000,` +
		`"data":{"object":{"id":"sub_1","customer":"cus_1","status":"active"}}}`
)

func TestHandler(t *testing.T) {
	verifier := signature.NewVerifier(secret, 5*time.Minute)
	now := time.Now()
	valid := verifier.Sign([]byte(event), now)
	forged := signature.NewVerifier("other", 5*time.Minute).Sign([]byte(event), now)

	tests := []struct {
		name       string
		body       string
		header     string
		setupMock  func(m *ReconcilerMock)
		wantStatus int
		wantBody   string
	}{
		{
			name:   "applied",
			body:   event,
			header: valid,
			setupMock: func(m *ReconcilerMock) {
				m.On("Handle", mock.Anything, mock.MatchedBy(func(env *billing.Envelope) bool {
					return env.EventID == "evt_1" && env.Type == "customer.subscription.created"
				}), []byte(event)).Return(billing.Result{EventID: "evt_1", Outcome: billing.OutcomeApplied}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `"outcome":"applied"`,
		},
		{
			name:   "unapplied still acknowledged",
			body:   event,
			header: valid,
			setupMock: func(m *ReconcilerMock) {
				m.On("Handle", mock.Anything, mock.Anything, mock.Anything).
					Return(billing.Result{EventID: "evt_1", Outcome: billing.OutcomeUnapplied, Reason: "no principal"}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `"outcome":"unapplied"`,
		},
		{
			name:       "missing signature",
			body:       event,
			header:     "",
			setupMock:  func(_ *ReconcilerMock) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "forged signature",
			body:       event,
			header:     forged,
			setupMock:  func(_ *ReconcilerMock) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "signature for a different body",
			body:       `{"id":"evt_2"}`,
			header:     valid,
			setupMock:  func(_ *ReconcilerMock) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "signed but malformed envelope",
			body:       `{"type":"invoice.payment_failed"}`,
			header:     verifier.Sign([]byte(`{"type":"invoice.payment_failed"}`), now),
			setupMock:  func(_ *ReconcilerMock) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   `"error":"invalid event"`,
		},
		{
			name:   "undecodable object",
			body:   event,
			header: valid,
			setupMock: func(m *ReconcilerMock) {
				m.On("Handle", mock.Anything, mock.Anything, mock.Anything).
					Return(billing.Result{Outcome: billing.OutcomeInvalid}, fmt.Errorf("billing.Reconciler.Handle: %w", models.ErrInvalidEvent)).Once()
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "storage unavailable",
			body:   event,
			header: valid,
			setupMock: func(m *ReconcilerMock) {
				m.On("Handle", mock.Anything, mock.Anything, mock.Anything).
					Return(billing.Result{}, errors.New("connection refused")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := new(ReconcilerMock)
			tt.setupMock(rec)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook", bytes.NewBufferString(tt.body))
			if tt.header != "" {
				req.Header.Set(signature.Header, tt.header)
			}
			w := httptest.NewRecorder()
			New(newNoopLogger(), verifier, rec).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			rec.AssertExpectations(t)
		})
	}
}
