package models

import (
	"encoding/json"
	"time"
)

// ProcessedEvent - запись о внешнем событии провайдера. EventID уникален и служит ключом дедупликации.
type ProcessedEvent struct {
	EventID     string          `json:"event_id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Processed   bool            `json:"processed"`
	Error       string          `json:"error,omitempty"` // причина, по которой изменение состояния не применилось
	ReceivedAt  time.Time       `json:"received_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}
