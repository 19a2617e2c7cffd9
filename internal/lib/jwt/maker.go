// Package jwt проверяет токены внешнего провайдера идентификации и превращает их в субъекта.
//
// Maker подписывает и разбирает токены HS256 с claim-полями sub, role и aud.
// Подпись нужна сервисным утилитам и тестам; рабочие токены выпускает провайдер.
package jwt

import (
	"time"

	"github.com/magabrotheeeer/premium-access/internal/models"
)

// Maker описывает выпуск и разбор токенов.
type Maker interface {
	// GenerateToken выпускает токен для субъекта.
	GenerateToken(principal models.Principal) (string, error)
	// ParseToken проверяет подпись, срок и аудиторию и возвращает claims.
	ParseToken(tokenStr string) (*CustomClaims, error)
	// ParsePrincipal возвращает субъекта из корректного токена.
	ParsePrincipal(tokenStr string) (models.Principal, error)
}

// MakerImpl реализует Maker на общем секрете.
type MakerImpl struct {
	secretKey string        // Секретный ключ для подписи токенов.
	audience  string        // Ожидаемая аудитория, пустая строка отключает проверку.
	tokenTTL  time.Duration // Время жизни выпускаемых токенов.
}

// NewJWTMaker создаёт новый экземпляр MakerImpl.
func NewJWTMaker(secretKey, audience string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		audience:  audience,
		tokenTTL:  ttl,
	}
}
