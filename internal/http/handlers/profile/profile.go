// Package profile реализует HTTP-обработчики чтения и изменения профиля.
//
// Чужой профиль и несуществующий профиль дают одинаковый ответ 404.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/premium-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/premium-access/internal/http/response"
	"github.com/magabrotheeeer/premium-access/internal/lib/sl"
	"github.com/magabrotheeeer/premium-access/internal/models"
)

// Service описывает бизнес-логику профилей.
type Service interface {
	Me(ctx context.Context, principal models.Principal) (*models.Profile, error)
	Read(ctx context.Context, principal models.Principal, id string) (*models.Profile, error)
	Update(ctx context.Context, principal models.Principal, id string, req models.DummyProfile) (*models.Profile, error)
}

// ReadHandler отдаёт профиль по ID.
type ReadHandler struct {
	log     *slog.Logger
	service Service
}

// NewRead создает новый ReadHandler.
func NewRead(log *slog.Logger, service Service) *ReadHandler {
	return &ReadHandler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить профиль
// @Tags Profiles
// @Produce  json
// @Param id path string true "ID профиля"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Профиль не найден или недоступен"
// @Router /profiles/{id} [get]
func (h *ReadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal := middlewarectx.PrincipalFrom(r.Context())
	p, err := h.service.Read(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		log.Info("failed to read profile", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"profile": p,
	}))
}

// MeHandler отдаёт профиль вызывающего.
type MeHandler struct {
	log     *slog.Logger
	service Service
}

// NewMe создает новый MeHandler.
func NewMe(log *slog.Logger, service Service) *MeHandler {
	return &MeHandler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Собственный профиль
// @Tags Profiles
// @Produce  json
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Нет корректного токена"
// @Failure 404 {object} response.ErrorResponse "Профиль ещё не создан"
// @Router /profiles/me [get]
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.me"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal := middlewarectx.PrincipalFrom(r.Context())
	if !principal.Valid() {
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	p, err := h.service.Me(r.Context(), principal)
	if err != nil {
		log.Info("failed to read own profile", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"profile": p,
	}))
}

// UpdateHandler изменяет профиль по ID.
type UpdateHandler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// NewUpdate создает новый UpdateHandler.
func NewUpdate(log *slog.Logger, service Service) *UpdateHandler {
	return &UpdateHandler{log: log, service: service, validate: validator.New()}
}

// ServeHTTP godoc
// @Summary Изменить профиль
// @Tags Profiles
// @Accept  json
// @Produce  json
// @Param id path string true "ID профиля"
// @Param request body models.DummyProfile true "Новые поля профиля"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Профиль не найден или недоступен"
// @Failure 409 {object} response.ErrorResponse "Имя пользователя занято"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /profiles/{id} [put]
func (h *UpdateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.update"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyProfile
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	principal := middlewarectx.PrincipalFrom(r.Context())
	p, err := h.service.Update(r.Context(), principal, chi.URLParam(r, "id"), req)
	if err != nil {
		log.Info("failed to update profile", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("profile updated", slog.String("profile_id", p.ID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"profile": p,
	}))
}
