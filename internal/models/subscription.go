package models

import "time"

// SubscriptionStatus статус подписки у платёжного провайдера.
type SubscriptionStatus string

const (
	StatusTrialing SubscriptionStatus = "trialing"
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
	StatusUnpaid   SubscriptionStatus = "unpaid"
)

// StatusNone возвращается, когда у субъекта нет ни одной записи подписки.
const StatusNone SubscriptionStatus = "none"

// Known сообщает, входит ли статус в закрытый набор статусов.
func (s SubscriptionStatus) Known() bool {
	switch s {
	case StatusTrialing, StatusActive, StatusPastDue, StatusCanceled, StatusUnpaid:
		return true
	}
	return false
}

// SubscriptionState - текущее состояние подписки субъекта, которое пишет только реконсилятор.
type SubscriptionState struct {
	PrincipalID        string             `json:"principal_id"`
	CustomerRef        string             `json:"customer_ref"`
	SubscriptionRef    string             `json:"subscription_ref"`
	Status             SubscriptionStatus `json:"status"`
	CurrentPeriodStart *time.Time         `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time         `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool               `json:"cancel_at_period_end"`
	TrialEnd           *time.Time         `json:"trial_end,omitempty"`
	LastEventAt        *time.Time         `json:"last_event_at,omitempty"` // время последнего применённого события по часам провайдера
	UpdatedAt          time.Time          `json:"updated_at"`
}

// HasActiveAccess вычисляет активный доступ на момент now.
// Доступ не хранится, а выводится из статуса и конца оплаченного периода.
func (s *SubscriptionState) HasActiveAccess(now time.Time) bool {
	if s == nil {
		return false
	}
	if s.Status != StatusActive && s.Status != StatusTrialing {
		return false
	}
	return s.CurrentPeriodEnd == nil || s.CurrentPeriodEnd.After(now)
}
