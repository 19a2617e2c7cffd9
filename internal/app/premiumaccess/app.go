package premiumaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/premium-access/internal/access"
	"github.com/magabrotheeeer/premium-access/internal/cache"
	"github.com/magabrotheeeer/premium-access/internal/config"
	"github.com/magabrotheeeer/premium-access/internal/grpc/health"
	"github.com/magabrotheeeer/premium-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/premium-access/internal/lib/jwt"
	"github.com/magabrotheeeer/premium-access/internal/lib/signature"
	"github.com/magabrotheeeer/premium-access/internal/lib/sl"
	"github.com/magabrotheeeer/premium-access/internal/metrics"
	"github.com/magabrotheeeer/premium-access/internal/migrations"
	"github.com/magabrotheeeer/premium-access/internal/rabbitmq"
	"github.com/magabrotheeeer/premium-access/internal/services/backlog"
	"github.com/magabrotheeeer/premium-access/internal/services/billing"
	courseservice "github.com/magabrotheeeer/premium-access/internal/services/course"
	likeservice "github.com/magabrotheeeer/premium-access/internal/services/like"
	profileservice "github.com/magabrotheeeer/premium-access/internal/services/profile"
	subservice "github.com/magabrotheeeer/premium-access/internal/services/subscription"
	"github.com/magabrotheeeer/premium-access/internal/storage/repository"
)

const healthCheckInterval = 10 * time.Second

// App основное приложение: HTTP API, gRPC health и фоновый отчёт о журнале.
type App struct {
	server          *http.Server
	grpc            *health.Server
	grpcAddr        string
	backlog         *backlog.Reporter
	logger          *slog.Logger
	db              *repository.Storage
	cache           *cache.Cache
	amqpConn        *amqp.Connection
	amqpCh          *amqp.Channel
	shutdownTimeout time.Duration
}

// New поднимает зависимости и собирает приложение.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "premiumaccess.New"

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.DB.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.DB.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.ConnectRetries, cfg.RetryDelay)
	if err != nil {
		_ = cacheRedis.Close()
		_ = db.DB.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	topo := rabbitmq.BillingTopology(cfg.Exchange, cfg.ChangedQueue, cfg.FailedQueue)
	ch, err := rabbitmq.SetupChannel(conn, topo)
	if err != nil {
		_ = conn.Close()
		_ = cacheRedis.Close()
		_ = db.DB.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	evaluator := access.NewEvaluator(collector)
	reconciler := billing.NewReconciler(db, evaluator, logger,
		billing.WithPublisher(rabbitmq.NewPublisher(ch, topo.Exchange)),
		billing.WithMetrics(collector),
	)

	subscriptionService := subservice.NewSubscriptionService(db, evaluator, logger)
	profileService := profileservice.NewProfileService(db, evaluator, logger)
	courseService := courseservice.NewCourseService(db, cacheRedis, subscriptionService, evaluator, cfg.CourseTTL, logger)
	likeService := likeservice.NewLikeService(db, profileService, courseService, evaluator, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, RouteDeps{
		Log:            logger,
		Tokens:         jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.Audience, cfg.TokenTTL),
		Verifier:       signature.NewVerifier(cfg.WebhookSecret, cfg.Tolerance),
		Reconciler:     reconciler,
		Events:         reconciler,
		Profiles:       profileService,
		Likes:          likeService,
		Courses:        courseService,
		Subscriptions:  subscriptionService,
		Health:         db,
		WebhookLimiter: middlewarectx.NewLimiter(cfg.RPS*10, cfg.Burst*10, 10*time.Minute),
		APILimiter:     middlewarectx.NewLimiter(cfg.RPS, cfg.Burst, 10*time.Minute),
		Instrument:     collector.Middleware,
		Metrics:        metrics.Handler(reg),
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:          srv,
		grpc:            health.New(db, logger),
		grpcAddr:        cfg.AddressGRPC,
		backlog:         backlog.NewReporter(db, collector, cfg.Interval, logger),
		logger:          logger,
		db:              db,
		cache:           cacheRedis,
		amqpConn:        conn,
		amqpCh:          ch,
		shutdownTimeout: cfg.ShutdownTimeout,
	}, nil
}

// Run запускает серверы и блокируется до отмены ctx или ошибки сервера.
func (a *App) Run(ctx context.Context) error {
	const op = "premiumaccess.Run"

	lis, err := net.Listen("tcp", a.grpcAddr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	bgCtx, cancelBg := context.WithCancel(ctx)
	defer cancelBg()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.grpc.Watch(bgCtx, healthCheckInterval)
	}()
	go func() {
		defer wg.Done()
		a.backlog.Run(bgCtx)
	}()

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("gRPC health server starting", slog.String("address", a.grpcAddr))
		errCh <- a.grpc.Serve(lis)
	}()
	go func() {
		a.logger.Info("HTTP server starting", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var runErr error
	select {
	case runErr = <-errCh:
		if runErr != nil {
			a.logger.Error("server stopped unexpectedly", sl.Err(runErr))
		}
	case <-ctx.Done():
	}

	a.logger.Info("shutting down gracefully")
	timeoutCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(timeoutCtx); err != nil {
		a.logger.Error("failed to shutdown HTTP server", sl.Err(err))
		runErr = errors.Join(runErr, err)
	}
	a.grpc.Stop()
	cancelBg()
	wg.Wait()

	a.close()
	return runErr
}

func (a *App) close() {
	if err := a.amqpCh.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.amqpConn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
