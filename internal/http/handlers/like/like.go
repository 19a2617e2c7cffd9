// Package like реализует HTTP-обработчики лайков: поставить, перечислить, снять.
//
// Обычный пользователь видит и меняет только собственные лайки; чужие строки
// в ответах отсутствуют, а снятие чужого лайка неотличимо от снятия несуществующего.
package like

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
	"github.com/magabrotheeeer/premium-access/internal/http/request"
	"github.com/magabrotheeeer/premium-access/internal/http/response"
	"github.com/magabrotheeeer/premium-access/internal/lib/sl"
	"github.com/magabrotheeeer/premium-access/internal/models"
)

// Service описывает бизнес-логику лайков.
type Service interface {
	Create(ctx context.Context, principal models.Principal, req models.DummyLike) (*models.Like, error)
	List(ctx context.Context, principal models.Principal, filter models.LikeFilter, limit, offset int) ([]*models.Like, error)
	Remove(ctx context.Context, principal models.Principal, courseID string) error
}

// CreateHandler ставит лайк от имени вызывающего.
type CreateHandler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// NewCreate создает новый CreateHandler.
func NewCreate(log *slog.Logger, service Service) *CreateHandler {
	return &CreateHandler{log: log, service: service, validate: validator.New()}
}

// ServeHTTP godoc
// @Summary Поставить лайк
// @Tags Likes
// @Accept  json
// @Produce  json
// @Param request body models.DummyLike true "Курс"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Нет корректного токена"
// @Failure 404 {object} response.ErrorResponse "Нет профиля или курса"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /likes [post]
func (h *CreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.like.create"
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

	var req models.DummyLike
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

	like, err := h.service.Create(r.Context(), principal, req)
	if err != nil {
		log.Info("failed to create like", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"like": like,
	}))
}

// ListHandler перечисляет видимые вызывающему лайки.
type ListHandler struct {
	log     *slog.Logger
	service Service
}

// NewList создает новый ListHandler.
func NewList(log *slog.Logger, service Service) *ListHandler {
	return &ListHandler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Список лайков
// @Description Без user_id обычный пользователь получает свои лайки. Фильтр по чужому профилю даёт пустой список.
// @Tags Likes
// @Produce  json
// @Param user_id query string false "ID профиля"
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректная пагинация"
// @Router /likes [get]
func (h *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.like.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	limit, offset, err := request.Page(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error(err.Error()))
		return
	}

	var filter models.LikeFilter
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		filter.UserID = &userID
	}

	principal := middlewarectx.PrincipalFrom(r.Context())
	likes, err := h.service.List(r.Context(), principal, filter, limit, offset)
	if err != nil {
		log.Error("failed to list likes", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"likes": likes,
	}))
}

// RemoveHandler снимает собственный лайк.
type RemoveHandler struct {
	log     *slog.Logger
	service Service
}

// NewRemove создает новый RemoveHandler.
func NewRemove(log *slog.Logger, service Service) *RemoveHandler {
	return &RemoveHandler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Снять лайк
// @Tags Likes
// @Param courseID path string true "ID курса"
// @Success 204
// @Failure 404 {object} response.ErrorResponse "Лайка нет"
// @Router /likes/{courseID} [delete]
func (h *RemoveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.like.remove"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal := middlewarectx.PrincipalFrom(r.Context())
	courseID := chi.URLParam(r, "courseID")
	if err := h.service.Remove(r.Context(), principal, courseID); err != nil {
		log.Info("failed to remove like", slog.String("course_id", courseID), sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
