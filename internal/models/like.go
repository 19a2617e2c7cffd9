package models

import "time"

// Like - связь профиля пользователя с курсом.
type Like struct {
	UserID    string    `json:"user_id"` // ID профиля (не субъекта)
	CourseID  string    `json:"course_id"`
	CreatedAt time.Time `json:"created_at"`
}

// DummyLike используется для приёма данных лайка из JSON-запроса.
type DummyLike struct {
	CourseID string `json:"course_id" validate:"required"`
}

// LikeFilter задаёт необязательный фильтр выборки лайков.
type LikeFilter struct {
	UserID *string // nil - без фильтра по владельцу
}
