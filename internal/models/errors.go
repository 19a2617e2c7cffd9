package models

import "errors"

var (
	// ErrNotFound возвращается и для отсутствующей строки, и для строки, доступ к которой запрещён.
	ErrNotFound = errors.New("not found")
	// ErrInvalidEvent - событие не прошло проверку подписи или разбор; оно не записывается.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrStateWrite - событие записано в журнал, но изменение состояния не применилось.
	// Требует ручного повтора.
	ErrStateWrite = errors.New("subscription state write failed")
	// ErrAlreadyExists - уникальное ограничение сработало при вставке.
	ErrAlreadyExists = errors.New("already exists")
)
