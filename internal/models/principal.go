// Package models содержит доменные структуры сервиса: субъект доступа, профиль,
// лайки, курсы, состояние подписки и журнал обработанных событий платёжного провайдера.
package models

import "github.com/google/uuid"

// Role роль субъекта, выданная провайдером идентификации.
type Role string

const (
	// RoleAuthenticated - обычный зарегистрированный пользователь.
	RoleAuthenticated Role = "authenticated"
	// RoleAdmin - администратор, обходит построчные ограничения.
	RoleAdmin Role = "admin"
	// RoleService - доверенная служебная идентичность бэкенда (в том числе реконсилятор).
	RoleService Role = "service_role"
)

// Principal описывает аутентифицированного субъекта запроса.
// Передаётся явно в каждый вызов слоя данных, глобального "текущего пользователя" нет.
type Principal struct {
	ID   string // Идентификатор субъекта у провайдера идентификации (uuid)
	Role Role   // Роль субъекта
}

// ServicePrincipal возвращает служебную идентичность бэкенда.
func ServicePrincipal() Principal {
	return Principal{ID: uuid.Nil.String(), Role: RoleService}
}

// Valid сообщает, является ли идентичность корректной.
// Пустая или некорректная идентичность трактуется слоем доступа как запрет.
func (p Principal) Valid() bool {
	switch p.Role {
	case RoleService:
		return true
	case RoleAuthenticated, RoleAdmin:
		_, err := uuid.Parse(p.ID)
		return err == nil
	default:
		return false
	}
}

// Elevated сообщает, обходит ли субъект построчные ограничения.
func (p Principal) Elevated() bool {
	return p.Valid() && (p.Role == RoleAdmin || p.Role == RoleService)
}
