// Package monitor собирает приложение, которое читает уведомления реконсилятора из брокера.
package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/premium-access/internal/config"
	"github.com/magabrotheeeer/premium-access/internal/lib/sl"
	"github.com/magabrotheeeer/premium-access/internal/rabbitmq"
	monitorservice "github.com/magabrotheeeer/premium-access/internal/services/monitor"
)

// App потребитель очередей subscription.changed и reconcile.failed.
type App struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	topo    rabbitmq.Topology
	monitor *monitorservice.Monitor
	logger  *slog.Logger
}

// New подключается к брокеру и объявляет топологию.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "monitor.New"

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.ConnectRetries, cfg.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	topo := rabbitmq.BillingTopology(cfg.Exchange, cfg.ChangedQueue, cfg.FailedQueue)
	ch, err := rabbitmq.SetupChannel(conn, topo)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &App{
		conn:    conn,
		ch:      ch,
		topo:    topo,
		monitor: monitorservice.New(logger),
		logger:  logger,
	}, nil
}

// Run потребляет очереди до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	const op = "monitor.Run"

	handlers := map[string]func([]byte) error{
		rabbitmq.RoutingReconcileFailed: a.monitor.HandleReconcileFailed,
		rabbitmq.RoutingStateChanged:    a.monitor.HandleStateChanged,
	}
	for _, q := range a.topo.Queues {
		handler, ok := handlers[q.RoutingKey]
		if !ok {
			continue
		}
		if err := rabbitmq.ConsumerMessage(ctx, a.ch, q.QueueName, handler, a.logger); err != nil {
			a.logger.Error("failed to start consumer", slog.String("queue", q.QueueName), sl.Err(err))
			a.close()
			return fmt.Errorf("%s: %w", op, err)
		}
		a.logger.Info("consumer started", slog.String("queue", q.QueueName))
	}

	<-ctx.Done()
	a.logger.Info("reconcile monitor shutting down gracefully")
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
}
