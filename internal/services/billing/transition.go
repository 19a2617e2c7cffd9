package billing

import (
	"fmt"
	"time"

	"github.com/magabrotheeeer/premium-access/internal/models"
)

// Outcome итог обработки одного события.
type Outcome string

const (
	// OutcomeApplied состояние изменено.
	OutcomeApplied Outcome = "applied"
	// OutcomeDuplicate событие с таким ID уже было записано; побочные эффекты не повторяются.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeNoop событие корректно, но не меняет состояние (повторное created).
	OutcomeNoop Outcome = "noop"
	// OutcomeStale событие старше последнего применённого по часам провайдера.
	OutcomeStale Outcome = "stale"
	// OutcomeIgnored вид события вне закрытого набора.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeUnapplied событие записано, но изменение состояния не удалось.
	OutcomeUnapplied Outcome = "unapplied"
	// OutcomeInvalid событие отклонено до записи.
	OutcomeInvalid Outcome = "invalid"
)

// Transition результат чистой функции перехода.
type Transition struct {
	Next    *models.SubscriptionState // nil - состояние не меняется
	Outcome Outcome
}

// Apply вычисляет новое состояние записи по событию.
//
// current - запись, найденная по ссылке на подписку (nil, если её нет).
// principalID - владелец, которого удалось определить для новой записи.
// Ошибка оборачивает models.ErrStateWrite: событие корректно, но применить его нельзя.
func Apply(current *models.SubscriptionState, ev Event, principalID string, now time.Time) (Transition, error) {
	meta := ev.EventMeta()

	switch e := ev.(type) {
	case SubscriptionCreated:
		if current != nil {
			return Transition{Outcome: OutcomeNoop}, nil
		}
		return create(e.Snapshot, principalID, meta, now)

	case SubscriptionUpdated:
		if current == nil {
			return create(e.Snapshot, principalID, meta, now)
		}
		if stale(current, meta) {
			return Transition{Outcome: OutcomeStale}, nil
		}
		next := overlay(*current, e.Snapshot)
		return applied(next, meta, now), nil

	case SubscriptionDeleted:
		if current == nil {
			snap := e.Snapshot
			snap.Status = models.StatusCanceled
			return create(snap, principalID, meta, now)
		}
		if stale(current, meta) {
			return Transition{Outcome: OutcomeStale}, nil
		}
		next := *current
		next.Status = models.StatusCanceled
		return applied(next, meta, now), nil

	case InvoicePaymentFailed:
		if current == nil {
			snap := Snapshot{
				SubscriptionRef: e.SubscriptionRef,
				CustomerRef:     e.CustomerRef,
				Status:          models.StatusPastDue,
			}
			return create(snap, principalID, meta, now)
		}
		if stale(current, meta) {
			return Transition{Outcome: OutcomeStale}, nil
		}
		next := *current
		next.Status = models.StatusPastDue
		return applied(next, meta, now), nil

	case Ignored:
		return Transition{Outcome: OutcomeIgnored}, nil

	default:
		return Transition{}, fmt.Errorf("%w: unsupported event %T", models.ErrStateWrite, ev)
	}
}

func create(snap Snapshot, principalID string, meta Meta, now time.Time) (Transition, error) {
	if principalID == "" {
		return Transition{}, fmt.Errorf("%w: cannot resolve principal for subscription %s", models.ErrStateWrite, snap.SubscriptionRef)
	}
	if snap.Status == "" {
		return Transition{}, fmt.Errorf("%w: no status for new subscription %s", models.ErrStateWrite, snap.SubscriptionRef)
	}
	next := overlay(models.SubscriptionState{
		PrincipalID:     principalID,
		SubscriptionRef: snap.SubscriptionRef,
	}, snap)
	return applied(next, meta, now), nil
}

// overlay переносит в запись только те поля, которые провайдер прислал.
func overlay(st models.SubscriptionState, snap Snapshot) models.SubscriptionState {
	if snap.Status != "" {
		st.Status = snap.Status
	}
	if snap.CustomerRef != "" {
		st.CustomerRef = snap.CustomerRef
	}
	if snap.CurrentPeriodStart != nil {
		st.CurrentPeriodStart = snap.CurrentPeriodStart
	}
	if snap.CurrentPeriodEnd != nil {
		st.CurrentPeriodEnd = snap.CurrentPeriodEnd
	}
	if snap.CancelAtPeriodEnd != nil {
		st.CancelAtPeriodEnd = *snap.CancelAtPeriodEnd
	}
	if snap.TrialEnd != nil {
		st.TrialEnd = snap.TrialEnd
	}
	return st
}

func applied(next models.SubscriptionState, meta Meta, now time.Time) Transition {
	if meta.OccurredAt != nil && (next.LastEventAt == nil || meta.OccurredAt.After(*next.LastEventAt)) {
		at := *meta.OccurredAt
		next.LastEventAt = &at
	}
	next.UpdatedAt = now
	return Transition{Next: &next, Outcome: OutcomeApplied}
}

// stale: событие без времени применяется в порядке поступления.
func stale(current *models.SubscriptionState, meta Meta) bool {
	if meta.OccurredAt == nil || current.LastEventAt == nil {
		return false
	}
	return meta.OccurredAt.Before(*current.LastEventAt)
}
