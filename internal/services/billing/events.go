// Package billing применяет события жизненного цикла подписки от платёжного провайдера
// к состоянию подписки: разбор конверта, закрытый набор видов событий, чистые функции
// переходов и транзакционный реконсилятор с дедупликацией по ID события.
package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/magabrotheeeer/premium-access/internal/models"
)

// Kind вид события провайдера.
type Kind string

const (
	KindSubscriptionCreated  Kind = "customer.subscription.created"
	KindSubscriptionUpdated  Kind = "customer.subscription.updated"
	KindSubscriptionDeleted  Kind = "customer.subscription.deleted"
	KindInvoicePaymentFailed Kind = "invoice.payment_failed"
)

// Envelope - конверт события в том виде, в каком его присылает провайдер.
type Envelope struct {
	EventID string `json:"event_id"`
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEnvelope разбирает тело запроса и проверяет обязательные поля конверта.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidEvent, err)
	}
	if env.EventID == "" {
		env.EventID = env.ID
	}
	if env.EventID == "" {
		return nil, fmt.Errorf("%w: missing event id", models.ErrInvalidEvent)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing event type", models.ErrInvalidEvent)
	}
	if len(env.Data.Object) == 0 || string(env.Data.Object) == "null" {
		return nil, fmt.Errorf("%w: missing data.object", models.ErrInvalidEvent)
	}
	return &env, nil
}

// OccurredAt время события по часам провайдера, nil если провайдер его не передал.
func (e *Envelope) OccurredAt() *time.Time {
	if e.Created <= 0 {
		return nil
	}
	t := time.Unix(e.Created, 0).UTC()
	return &t
}

// Event - закрытый набор событий, которые меняют состояние подписки.
// Реализации: SubscriptionCreated, SubscriptionUpdated, SubscriptionDeleted,
// InvoicePaymentFailed и Ignored.
type Event interface {
	EventMeta() Meta
	sealed()
}

// Meta общие поля всех событий.
type Meta struct {
	EventID    string
	Kind       Kind
	OccurredAt *time.Time
}

func (m Meta) EventMeta() Meta { return m }
func (Meta) sealed()           {}

// Snapshot - состояние подписки, как его описывает провайдер. Незаданные поля равны nil.
type Snapshot struct {
	SubscriptionRef    string
	CustomerRef        string
	PrincipalID        string
	Status             models.SubscriptionStatus
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  *bool
	TrialEnd           *time.Time
}

type (
	// SubscriptionCreated создание подписки.
	SubscriptionCreated struct {
		Meta
		Snapshot
	}
	// SubscriptionUpdated изменение подписки.
	SubscriptionUpdated struct {
		Meta
		Snapshot
	}
	// SubscriptionDeleted окончательная отмена подписки.
	SubscriptionDeleted struct {
		Meta
		Snapshot
	}
	// InvoicePaymentFailed неуспешная оплата счёта по подписке.
	InvoicePaymentFailed struct {
		Meta
		SubscriptionRef string
		CustomerRef     string
		PrincipalID     string
	}
	// Ignored событие вне закрытого набора: записывается в журнал, состояние не меняет.
	Ignored struct {
		Meta
	}
)

type metadata struct {
	PrincipalID string `json:"principal_id"`
}

type subscriptionObject struct {
	ID                 string   `json:"id"`
	Customer           string   `json:"customer"`
	Status             string   `json:"status"`
	CurrentPeriodStart *int64   `json:"current_period_start"`
	CurrentPeriodEnd   *int64   `json:"current_period_end"`
	CancelAtPeriodEnd  *bool    `json:"cancel_at_period_end"`
	TrialEnd           *int64   `json:"trial_end"`
	Metadata           metadata `json:"metadata"`
}

type invoiceObject struct {
	ID           string   `json:"id"`
	Subscription string   `json:"subscription"`
	Customer     string   `json:"customer"`
	Metadata     metadata `json:"metadata"`
}

// Decode превращает конверт в событие закрытого набора.
// Ошибка всегда оборачивает models.ErrInvalidEvent.
func Decode(env *Envelope) (Event, error) {
	meta := Meta{EventID: env.EventID, Kind: Kind(env.Type), OccurredAt: env.OccurredAt()}

	switch meta.Kind {
	case KindSubscriptionCreated, KindSubscriptionUpdated, KindSubscriptionDeleted:
		snap, err := decodeSnapshot(env.Data.Object)
		if err != nil {
			return nil, err
		}
		switch meta.Kind {
		case KindSubscriptionCreated:
			if snap.Status == "" {
				return nil, fmt.Errorf("%w: created event without status", models.ErrInvalidEvent)
			}
			return SubscriptionCreated{Meta: meta, Snapshot: snap}, nil
		case KindSubscriptionUpdated:
			return SubscriptionUpdated{Meta: meta, Snapshot: snap}, nil
		default:
			return SubscriptionDeleted{Meta: meta, Snapshot: snap}, nil
		}
	case KindInvoicePaymentFailed:
		var obj invoiceObject
		if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidEvent, err)
		}
		if obj.Subscription == "" {
			return nil, fmt.Errorf("%w: invoice without subscription reference", models.ErrInvalidEvent)
		}
		return InvoicePaymentFailed{
			Meta:            meta,
			SubscriptionRef: obj.Subscription,
			CustomerRef:     obj.Customer,
			PrincipalID:     obj.Metadata.PrincipalID,
		}, nil
	default:
		return Ignored{Meta: meta}, nil
	}
}

func decodeSnapshot(raw json.RawMessage) (Snapshot, error) {
	var obj subscriptionObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", models.ErrInvalidEvent, err)
	}
	if obj.ID == "" {
		return Snapshot{}, fmt.Errorf("%w: subscription without id", models.ErrInvalidEvent)
	}
	status := models.SubscriptionStatus(obj.Status)
	if status != "" && !status.Known() {
		return Snapshot{}, fmt.Errorf("%w: unknown subscription status %q", models.ErrInvalidEvent, obj.Status)
	}
	return Snapshot{
		SubscriptionRef:    obj.ID,
		CustomerRef:        obj.Customer,
		PrincipalID:        obj.Metadata.PrincipalID,
		Status:             status,
		CurrentPeriodStart: unixPtr(obj.CurrentPeriodStart),
		CurrentPeriodEnd:   unixPtr(obj.CurrentPeriodEnd),
		CancelAtPeriodEnd:  obj.CancelAtPeriodEnd,
		TrialEnd:           unixPtr(obj.TrialEnd),
	}, nil
}

func unixPtr(v *int64) *time.Time {
	if v == nil || *v <= 0 {
		return nil
	}
	t := time.Unix(*v, 0).UTC()
	return &t
}
