// Package events реализует служебные HTTP-обработчики журнала событий биллинга:
// просмотр и ручной повтор неприменённых событий.
//
// Доступ есть только у повышенных субъектов. Остальные получают пустой список
// и 404 на повтор.
package events

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/premium-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/premium-access/internal/http/request"
	"github.com/magabrotheeeer/premium-access/internal/http/response"
	"github.com/magabrotheeeer/premium-access/internal/lib/sl"
	"github.com/magabrotheeeer/premium-access/internal/models"
	"github.com/magabrotheeeer/premium-access/internal/services/billing"
)

// Service описывает операции журнала.
type Service interface {
	ListEvents(ctx context.Context, principal models.Principal, unprocessedOnly bool, limit, offset int) ([]*models.ProcessedEvent, error)
	Replay(ctx context.Context, principal models.Principal, eventID string) (billing.Result, error)
}

// ListHandler отдаёт страницу журнала.
type ListHandler struct {
	log     *slog.Logger
	service Service
}

// NewList создает новый ListHandler.
func NewList(log *slog.Logger, service Service) *ListHandler {
	return &ListHandler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Журнал событий биллинга
// @Tags Admin
// @Produce  json
// @Param unprocessed query bool false "Только неприменённые"
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректные параметры"
// @Router /admin/events [get]
func (h *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.events.list"
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

	var unprocessed bool
	if v := r.URL.Query().Get("unprocessed"); v != "" {
		unprocessed, err = strconv.ParseBool(v)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid unprocessed flag"))
			return
		}
	}

	principal := middlewarectx.PrincipalFrom(r.Context())
	events, err := h.service.ListEvents(r.Context(), principal, unprocessed, limit, offset)
	if err != nil {
		log.Error("failed to list events", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"events": events,
	}))
}

// ReplayHandler повторно применяет событие.
type ReplayHandler struct {
	log     *slog.Logger
	service Service
}

// NewReplay создает новый ReplayHandler.
func NewReplay(log *slog.Logger, service Service) *ReplayHandler {
	return &ReplayHandler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Повторить событие
// @Description Повторно применяет записанное событие с processed=false. Уже применённое событие даёт outcome=duplicate.
// @Tags Admin
// @Produce  json
// @Param id path string true "ID события"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "События нет или доступ запрещён"
// @Router /admin/events/{id}/replay [post]
func (h *ReplayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.events.replay"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal := middlewarectx.PrincipalFrom(r.Context())
	eventID := chi.URLParam(r, "id")
	res, err := h.service.Replay(r.Context(), principal, eventID)
	if err != nil {
		log.Warn("replay failed", slog.String("event_id", eventID), sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("replay finished", sl.Event(res.EventID, string(res.Kind)), slog.String("outcome", string(res.Outcome)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"event_id": res.EventID,
		"kind":     res.Kind,
		"outcome":  res.Outcome,
		"reason":   res.Reason,
	}))
}
