// Package webhook реализует приём событий платёжного провайдера.
//
// Порядок обработки: проверка подписи, разбор конверта, передача реконсилятору.
// Событие с неверной подписью или неразборчивым телом отклоняется и нигде не записывается.
// Записанное, но не применённое событие отвечает 200, чтобы провайдер не повторял доставку.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/premium-access/internal/http/response"
	"github.com/magabrotheeeer/premium-access/internal/lib/signature"
	"github.com/magabrotheeeer/premium-access/internal/lib/sl"
	"github.com/magabrotheeeer/premium-access/internal/models"
	"github.com/magabrotheeeer/premium-access/internal/services/billing"
)

const maxBodyBytes = 1 << 20

// Verifier проверяет подпись тела запроса.
type Verifier interface {
	Verify(header string, body []byte) error
}

// Reconciler применяет проверенное событие.
type Reconciler interface {
	Handle(ctx context.Context, env *billing.Envelope, raw []byte) (billing.Result, error)
}

// Handler принимает события провайдера.
type Handler struct {
	log        *slog.Logger
	verifier   Verifier
	reconciler Reconciler
}

// New создает новый Handler.
func New(log *slog.Logger, verifier Verifier, reconciler Reconciler) *Handler {
	return &Handler{
		log:        log,
		verifier:   verifier,
		reconciler: reconciler,
	}
}

// ServeHTTP godoc
// @Summary Событие платёжного провайдера
// @Description Принимает подписанное событие. Повторная доставка того же события отвечает 200 без побочных эффектов.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Param Billing-Signature header string true "t=<unix>,v1=<hex hmac-sha256>"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректное событие"
// @Failure 401 {object} response.ErrorResponse "Неверная подпись"
// @Failure 500 {object} response.ErrorResponse "Временная ошибка, провайдер повторит доставку"
// @Router /billing/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Warn("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.verifier.Verify(r.Header.Get(signature.Header), body); err != nil {
		log.Warn("webhook signature rejected", sl.Err(err), slog.String("remote_addr", r.RemoteAddr))
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	env, err := billing.ParseEnvelope(body)
	if err != nil {
		log.Warn("webhook envelope rejected", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid event"))
		return
	}

	res, err := h.reconciler.Handle(r.Context(), env, body)
	if err != nil {
		if errors.Is(err, models.ErrInvalidEvent) {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid event"))
			return
		}
		log.Error("failed to handle webhook", sl.Event(env.EventID, env.Type), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("webhook handled", sl.Event(res.EventID, string(res.Kind)), slog.String("outcome", string(res.Outcome)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"event_id": res.EventID,
		"outcome":  res.Outcome,
	}))
}
