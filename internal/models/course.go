package models

import "time"

// Course - единица контента (курс или эпизод).
type Course struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Premium     bool      `json:"premium"`
	CreatedAt   time.Time `json:"created_at"`
}
