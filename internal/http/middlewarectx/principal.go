// Package middlewarectx содержит HTTP middleware: извлечение субъекта из JWT
// и ограничение частоты запросов.
//
// PrincipalMiddleware не отвечает 401 сам. Запрос без токена или с некорректным
// токеном получает пустого субъекта, а решение принимает слой доступа: некорректный
// субъект не видит ни одной строки.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/premium-access/internal/lib/sl"
	"github.com/magabrotheeeer/premium-access/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// PrincipalKey ключ субъекта в контексте.
const PrincipalKey Key = "principal"

// TokenParser превращает токен в субъекта.
type TokenParser interface {
	ParsePrincipal(tokenStr string) (models.Principal, error)
}

// PrincipalMiddleware разбирает заголовок Authorization и кладёт субъекта в контекст.
func PrincipalMiddleware(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.PrincipalMiddleware"

			var principal models.Principal
			authHeader := r.Header.Get("Authorization")
			if tokenStr, ok := strings.CutPrefix(authHeader, "Bearer "); ok && tokenStr != "" {
				p, err := parser.ParsePrincipal(tokenStr)
				if err != nil {
					log.Debug("token rejected, continuing as anonymous",
						slog.String("op", op),
						slog.String("request_id", middleware.GetReqID(r.Context())),
						sl.Err(err),
					)
				} else {
					principal = p
				}
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// WithPrincipal возвращает контекст с субъектом.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// PrincipalFrom достаёт субъекта из контекста. Без субъекта возвращается пустой,
// который слой доступа считает некорректным.
func PrincipalFrom(ctx context.Context) models.Principal {
	p, _ := ctx.Value(PrincipalKey).(models.Principal)
	return p
}
