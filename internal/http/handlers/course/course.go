// Package course реализует HTTP-обработчики каталога курсов.
//
// Премиальные курсы без активной подписки в ответах отсутствуют.
package course

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/premium-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/premium-access/internal/http/request"
	"github.com/magabrotheeeer/premium-access/internal/http/response"
	"github.com/magabrotheeeer/premium-access/internal/lib/sl"
	"github.com/magabrotheeeer/premium-access/internal/models"
)

// Service описывает бизнес-логику каталога.
type Service interface {
	Read(ctx context.Context, principal models.Principal, id string) (*models.Course, error)
	List(ctx context.Context, principal models.Principal, limit, offset int) ([]*models.Course, error)
}

// ReadHandler отдаёт курс по ID.
type ReadHandler struct {
	log     *slog.Logger
	service Service
}

// NewRead создает новый ReadHandler.
func NewRead(log *slog.Logger, service Service) *ReadHandler {
	return &ReadHandler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить курс
// @Tags Courses
// @Produce  json
// @Param id path string true "ID курса"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Курса нет или он премиальный"
// @Router /courses/{id} [get]
func (h *ReadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.course.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal := middlewarectx.PrincipalFrom(r.Context())
	c, err := h.service.Read(r.Context(), principal, chi.URLParam(r, "id"))
	if err != nil {
		log.Info("failed to read course", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"course": c,
	}))
}

// ListHandler отдаёт страницу каталога.
type ListHandler struct {
	log     *slog.Logger
	service Service
}

// NewList создает новый ListHandler.
func NewList(log *slog.Logger, service Service) *ListHandler {
	return &ListHandler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Каталог курсов
// @Tags Courses
// @Produce  json
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректная пагинация"
// @Router /courses [get]
func (h *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.course.list"
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

	principal := middlewarectx.PrincipalFrom(r.Context())
	courses, err := h.service.List(r.Context(), principal, limit, offset)
	if err != nil {
		log.Error("failed to list courses", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"courses": courses,
	}))
}
