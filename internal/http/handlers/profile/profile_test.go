package profile

import (
	"bytes"
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
	"github.com/magabrotheeeer/premium-access/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Me(ctx context.Context, principal models.Principal) (*models.Profile, error) {
	args := m.Called(ctx, principal)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func (m *ServiceMock) Read(ctx context.Context, principal models.Principal, id string) (*models.Profile, error) {
	args := m.Called(ctx, principal, id)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func (m *ServiceMock) Update(ctx context.Context, principal models.Principal, id string, req models.DummyProfile) (*models.Profile, error) {
	args := m.Called(ctx, principal, id, req)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

const (
	profileA = "0b0c4c1e-6a54-4d2a-93a8-2f0f3d2f1c11"
	profileB = "5d7e1b0a-3c2f-4e9d-8b6a-7f1e2d3c4b5a"
)

var userA = models.Principal{ID: "8a3f0f7e-2c41-4f7e-9f55-1d7d1f6b2a10", Role: models.RoleAuthenticated}

func withRoute(req *http.Request, principal models.Principal, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(middlewarectx.WithPrincipal(ctx, principal))
}

func TestReadHandler(t *testing.T) {
	own := &models.Profile{ID: profileA, AuthPrincipalID: userA.ID, Username: "alice"}

	tests := []struct {
		name       string
		id         string
		setupMock  func(m *ServiceMock)
		wantStatus int
		wantBody   string
	}{
		{
			name: "own profile",
			id:   profileA,
			setupMock: func(m *ServiceMock) {
				m.On("Read", mock.Anything, userA, profileA).Return(own, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `"username":"alice"`,
		},
		{
			name: "foreign profile looks missing",
			id:   profileB,
			setupMock: func(m *ServiceMock) {
				m.On("Read", mock.Anything, userA, profileB).Return(nil, fmt.Errorf("profile.Read: %w", models.ErrNotFound)).Once()
			},
			wantStatus: http.StatusNotFound,
			wantBody:   `"error":"not found"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMock(svc)

			req := withRoute(httptest.NewRequest(http.MethodGet, "/api/v1/profiles/"+tt.id, nil), userA, tt.id)
			w := httptest.NewRecorder()
			NewRead(newNoopLogger(), svc).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestMeHandler(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		svc := new(ServiceMock)
		req := withRoute(httptest.NewRequest(http.MethodGet, "/api/v1/profiles/me", nil), models.Principal{}, "")
		w := httptest.NewRecorder()
		NewMe(newNoopLogger(), svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		svc.AssertNotCalled(t, "Me", mock.Anything, mock.Anything)
	})

	t.Run("own profile", func(t *testing.T) {
		svc := new(ServiceMock)
		svc.On("Me", mock.Anything, userA).Return(&models.Profile{ID: profileA, Username: "alice"}, nil).Once()

		req := withRoute(httptest.NewRequest(http.MethodGet, "/api/v1/profiles/me", nil), userA, "")
		w := httptest.NewRecorder()
		NewMe(newNoopLogger(), svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), profileA)
		svc.AssertExpectations(t)
	})

	t.Run("not registered yet", func(t *testing.T) {
		svc := new(ServiceMock)
		svc.On("Me", mock.Anything, userA).Return(nil, models.ErrNotFound).Once()

		req := withRoute(httptest.NewRequest(http.MethodGet, "/api/v1/profiles/me", nil), userA, "")
		w := httptest.NewRecorder()
		NewMe(newNoopLogger(), svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUpdateHandler(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		body       string
		setupMock  func(m *ServiceMock)
		wantStatus int
		wantBody   string
	}{
		{
			name: "update own profile",
			id:   profileA,
			body: `{"username":"alice2","full_name":"Alice A"}`,
			setupMock: func(m *ServiceMock) {
				m.On("Update", mock.Anything, userA, profileA, models.DummyProfile{Username: "alice2", FullName: "Alice A"}).
					Return(&models.Profile{ID: profileA, Username: "alice2", FullName: "Alice A"}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `"username":"alice2"`,
		},
		{
			name: "foreign profile",
			id:   profileB,
			body: `{"username":"mallory"}`,
			setupMock: func(m *ServiceMock) {
				m.On("Update", mock.Anything, userA, profileB, models.DummyProfile{Username: "mallory"}).
					Return(nil, fmt.Errorf("profile.Update: %w", models.ErrNotFound)).Once()
			},
			wantStatus: http.StatusNotFound,
			wantBody:   `"error":"not found"`,
		},
		{
			name:       "invalid avatar url",
			id:         profileA,
			body:       `{"username":"alice","avatar_url":"::"}`,
			setupMock:  func(_ *ServiceMock) {},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `AvatarURL`,
		},
		{
			name:       "broken json",
			id:         profileA,
			body:       `{`,
			setupMock:  func(_ *ServiceMock) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   `"error":"invalid request body"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMock(svc)

			req := withRoute(httptest.NewRequest(http.MethodPut, "/api/v1/profiles/"+tt.id, bytes.NewBufferString(tt.body)), userA, tt.id)
			w := httptest.NewRecorder()
			NewUpdate(newNoopLogger(), svc).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}
