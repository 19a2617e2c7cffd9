// Package register реализует HTTP-обработчик саморегистрации: создание профиля
// для субъекта, уже аутентифицированного провайдером идентификации.
//
// Повторный вызов не создаёт второй профиль и возвращает существующий.
package register

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/premium-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/premium-access/internal/http/response"
	"github.com/magabrotheeeer/premium-access/internal/lib/sl"
	"github.com/magabrotheeeer/premium-access/internal/models"
)

// Service описывает бизнес-логику регистрации.
type Service interface {
	Register(ctx context.Context, principal models.Principal, req models.DummyProfile) (*models.Profile, bool, error)
}

// Handler обрабатывает запросы на регистрацию.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Зарегистрировать профиль
// @Description Создаёт профиль для субъекта из токена. Повторный вызов возвращает существующий профиль.
// @Tags Profiles
// @Accept  json
// @Produce  json
// @Param request body models.DummyProfile true "Данные профиля"
// @Success 201 {object} response.Response "Профиль создан"
// @Success 200 {object} response.Response "Профиль уже существует"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Нет корректного токена"
// @Failure 409 {object} response.ErrorResponse "Имя пользователя занято"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal := middlewarectx.PrincipalFrom(r.Context())
	if !principal.Valid() {
		log.Warn("registration without valid principal")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req models.DummyProfile
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			log.Info("validation failed", sl.Err(err))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		log.Error("failed to validate request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	profile, created, err := h.service.Register(r.Context(), principal, req)
	if err != nil {
		log.Error("registration failed", sl.Err(err), sl.Principal(principal))
		response.WriteError(w, r, err)
		return
	}

	log.Info("profile registered", slog.String("profile_id", profile.ID), slog.Bool("created", created))
	if created {
		w.WriteHeader(http.StatusCreated)
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"profile": profile,
		"created": created,
	}))
}
