// Package access реализует построчный контроль доступа: для каждой защищённой таблицы
// задана одна явная функция-предикат, которая по субъекту и строке решает ALLOW/DENY.
//
// Пакет не ходит в базу и ничего не кеширует: всё, что нужно для решения
// (владелец строки, флаг premium, активность подписки), вызывающий слой передаёт в Request.
package access

import "github.com/magabrotheeeer/premium-access/internal/models"

// Table защищённая таблица.
type Table string

const (
	TableProfiles           Table = "profiles"
	TableLikes              Table = "likes"
	TableCourses            Table = "courses"
	TableSubscriptionStates Table = "subscription_states"
	TableProcessedEvents    Table = "processed_events"
)

// Operation запрошенная операция над строкой.
type Operation string

const (
	OpSelect Operation = "select"
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Decision результат проверки.
type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

func (d Decision) String() string {
	if d {
		return "allow"
	}
	return "deny"
}

// Request описывает одну проверку доступа.
type Request struct {
	Principal models.Principal
	// ProfileID - профиль вызывающего; нужен для таблиц, где владелец задан ID профиля.
	ProfileID string
	Table     Table
	Op        Operation
	// OwnerID - значение колонки владельца у проверяемой строки.
	OwnerID string
	// Premium и ActiveSubscription используются только для контента.
	Premium            bool
	ActiveSubscription bool
}

// Policy предикат одной таблицы. Вызывается только для валидного неповышенного субъекта.
type Policy func(req Request) bool

// DenialRecorder принимает факты отказа в доступе (для метрик).
type DenialRecorder interface {
	RecordAccessDenied(table, op string)
}

// Evaluator применяет политики таблиц.
type Evaluator struct {
	policies map[Table]Policy
	recorder DenialRecorder
}

// NewEvaluator создаёт Evaluator со стандартным набором политик. recorder может быть nil.
func NewEvaluator(recorder DenialRecorder) *Evaluator {
	return &Evaluator{
		policies: map[Table]Policy{
			TableProfiles:           profilesPolicy,
			TableLikes:              likesPolicy,
			TableCourses:            coursesPolicy,
			TableSubscriptionStates: subscriptionStatesPolicy,
			TableProcessedEvents:    processedEventsPolicy,
		},
		recorder: recorder,
	}
}

// Decide возвращает решение по запросу. Некорректный субъект и неизвестная таблица - всегда Deny.
func (e *Evaluator) Decide(req Request) Decision {
	d := e.decide(req)
	if d == Deny && e.recorder != nil {
		e.recorder.RecordAccessDenied(string(req.Table), string(req.Op))
	}
	return d
}

func (e *Evaluator) decide(req Request) Decision {
	if !req.Principal.Valid() {
		return Deny
	}
	policy, ok := e.policies[req.Table]
	if !ok {
		return Deny
	}
	if req.Principal.Elevated() {
		return Allow
	}
	return Decision(policy(req))
}

// Allowed короткая форма Decide.
func (e *Evaluator) Allowed(req Request) bool {
	return bool(e.Decide(req))
}

// Filter оставляет только строки, на которые у субъекта есть доступ.
// bind дополняет базовый запрос данными конкретной строки.
func Filter[T any](e *Evaluator, base Request, rows []T, bind func(Request, T) Request) []T {
	result := make([]T, 0, len(rows))
	for _, row := range rows {
		if e.Allowed(bind(base, row)) {
			result = append(result, row)
		}
	}
	return result
}
