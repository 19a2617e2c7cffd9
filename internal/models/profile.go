package models

import "time"

// Profile представляет строку пользователя в собственной таблице приложения.
// Одна строка на субъекта, связь по AuthPrincipalID.
type Profile struct {
	ID              string    `json:"id"`
	AuthPrincipalID string    `json:"auth_principal_id"`
	Username        string    `json:"username"`
	FullName        string    `json:"full_name"`
	AvatarURL       string    `json:"avatar_url"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DummyProfile используется для приёма полей профиля из JSON-запроса.
type DummyProfile struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	FullName  string `json:"full_name" validate:"omitempty,max=200"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url"`
}
