// Package monitor разбирает уведомления реконсилятора из брокера и пишет их в лог эксплуатации.
package monitor

import (
	"encoding/json"
	"log/slog"

	"github.com/magabrotheeeer/premium-access/internal/lib/sl"
	"github.com/magabrotheeeer/premium-access/internal/services/billing"
)

// Monitor обрабатывает сообщения очередей subscription.changed и reconcile.failed.
type Monitor struct {
	log *slog.Logger
}

// New создает новый Monitor.
func New(log *slog.Logger) *Monitor {
	return &Monitor{log: log}
}

// HandleReconcileFailed логирует событие, которое ждёт ручного повтора.
// Нечитаемое сообщение отбрасывается, иначе оно вечно возвращалось бы в очередь.
func (m *Monitor) HandleReconcileFailed(body []byte) error {
	const op = "monitor.HandleReconcileFailed"

	var n billing.FailureNotice
	if err := json.Unmarshal(body, &n); err != nil {
		m.log.Error("dropping unreadable failure notice", slog.String("op", op), sl.Err(err))
		return nil
	}
	m.log.Error("billing event requires manual replay",
		slog.String("op", op),
		sl.Event(n.EventID, n.Kind),
		slog.String("reason", n.Reason),
		slog.Time("at", n.At),
	)
	return nil
}

// HandleStateChanged логирует применённое изменение подписки.
func (m *Monitor) HandleStateChanged(body []byte) error {
	const op = "monitor.HandleStateChanged"

	var c billing.StateChange
	if err := json.Unmarshal(body, &c); err != nil {
		m.log.Warn("dropping unreadable state change", slog.String("op", op), sl.Err(err))
		return nil
	}
	m.log.Info("subscription state changed",
		slog.String("op", op),
		slog.String("event_id", c.EventID),
		slog.String("principal_id", c.PrincipalID),
		slog.String("subscription_ref", c.SubscriptionRef),
		slog.String("status", string(c.Status)),
		slog.Bool("active", c.Active),
	)
	return nil
}
