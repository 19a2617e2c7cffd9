// Package premiumaccess собирает HTTP-приложение: хранилище, реконсилятор,
// сервисы доступа к данным, брокер уведомлений, метрики и gRPC health.
package premiumaccess

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	// Описание API для /docs.
	_ "github.com/magabrotheeeer/premium-access/internal/docs"
	"github.com/magabrotheeeer/premium-access/internal/http/handlers/admin/events"
	"github.com/magabrotheeeer/premium-access/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/premium-access/internal/http/handlers/billing/webhook"
	"github.com/magabrotheeeer/premium-access/internal/http/handlers/course"
	"github.com/magabrotheeeer/premium-access/internal/http/handlers/health"
	"github.com/magabrotheeeer/premium-access/internal/http/handlers/like"
	"github.com/magabrotheeeer/premium-access/internal/http/handlers/profile"
	"github.com/magabrotheeeer/premium-access/internal/http/handlers/subscription/current"
	"github.com/magabrotheeeer/premium-access/internal/http/middlewarectx"
)

// ProfileService регистрация и профили.
type ProfileService interface {
	register.Service
	profile.Service
}

// RouteDeps зависимости обработчиков.
type RouteDeps struct {
	Log           *slog.Logger
	Tokens        middlewarectx.TokenParser
	Verifier      webhook.Verifier
	Reconciler    webhook.Reconciler
	Events        events.Service
	Profiles      ProfileService
	Likes         like.Service
	Courses       course.Service
	Subscriptions current.Service
	Health        health.Checker

	// WebhookLimiter считает запросы по адресу, APILimiter по субъекту.
	WebhookLimiter *middlewarectx.Limiter
	APILimiter     *middlewarectx.Limiter

	// Instrument оборачивает все запросы, например счётчиками Prometheus.
	Instrument func(http.Handler) http.Handler
	Metrics    http.Handler
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d RouteDeps) {
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)
	if d.Instrument != nil {
		r.Use(d.Instrument)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Провайдер подписывает тело, токена у него нет.
		r.With(middlewarectx.RateLimitMiddleware(d.WebhookLimiter, middlewarectx.KeyByIP, d.Log)).
			Post("/billing/webhook", webhook.New(d.Log, d.Verifier, d.Reconciler).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.PrincipalMiddleware(d.Tokens, d.Log))
			r.Use(middlewarectx.RateLimitMiddleware(d.APILimiter, middlewarectx.KeyByPrincipal, d.Log))

			r.Post("/register", register.New(d.Log, d.Profiles).ServeHTTP)

			r.Get("/profiles/me", profile.NewMe(d.Log, d.Profiles).ServeHTTP)
			r.Get("/profiles/{id}", profile.NewRead(d.Log, d.Profiles).ServeHTTP)
			r.Put("/profiles/{id}", profile.NewUpdate(d.Log, d.Profiles).ServeHTTP)

			r.Post("/likes", like.NewCreate(d.Log, d.Likes).ServeHTTP)
			r.Get("/likes", like.NewList(d.Log, d.Likes).ServeHTTP)
			r.Delete("/likes/{courseID}", like.NewRemove(d.Log, d.Likes).ServeHTTP)

			r.Get("/courses", course.NewList(d.Log, d.Courses).ServeHTTP)
			r.Get("/courses/{id}", course.NewRead(d.Log, d.Courses).ServeHTTP)

			r.Get("/subscription", current.New(d.Log, d.Subscriptions).ServeHTTP)

			r.Get("/admin/events", events.NewList(d.Log, d.Events).ServeHTTP)
			r.Post("/admin/events/{id}/replay", events.NewReplay(d.Log, d.Events).ServeHTTP)
		})
	})

	r.Get("/health", health.New(d.Log, d.Health).ServeHTTP)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
