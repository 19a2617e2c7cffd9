// Package sl содержит вспомогательные функции для работы с логгером slog.
// Основная цель — упростить формирование структурированных полей лога:
// ошибок, субъекта запроса и события провайдера.
package sl

import (
	"log/slog"

	"github.com/magabrotheeeer/premium-access/internal/models"
)

// Err возвращает slog.Attr с ключом "error" и значением текста ошибки.
//
// Пример:
//
//	log.Error("failed to do something", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Principal возвращает группу "principal" с ID и ролью субъекта.
func Principal(p models.Principal) slog.Attr {
	return slog.Group("principal",
		slog.String("id", p.ID),
		slog.String("role", string(p.Role)),
	)
}

// Event возвращает группу "event" с ID и видом события провайдера.
func Event(eventID, kind string) slog.Attr {
	return slog.Group("event",
		slog.String("id", eventID),
		slog.String("type", kind),
	)
}
