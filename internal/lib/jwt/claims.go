package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/magabrotheeeer/premium-access/internal/models"
)

// ErrInvalidPrincipal токен корректен, но субъект в нём не распознан.
var ErrInvalidPrincipal = errors.New("invalid principal claims")

// CustomClaims поля токена провайдера идентификации.
type CustomClaims struct {
	Role                 string `json:"role"` // authenticated, admin или service_role
	jwt.RegisteredClaims        // sub, aud, exp, iat
}

// GenerateToken создаёт токен для субъекта, подписывая его секретным ключом.
func (j *MakerImpl) GenerateToken(principal models.Principal) (string, error) {
	now := time.Now()
	claims := CustomClaims{
		Role: string(principal.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenTTL)),
		},
	}
	if j.audience != "" {
		claims.Audience = jwt.ClaimStrings{j.audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

// ParseToken парсит токен, проверяет подпись, алгоритм, срок и аудиторию.
func (j *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if j.audience != "" {
		opts = append(opts, jwt.WithAudience(j.audience))
	}
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	return claims, nil
}

// ParsePrincipal разбирает токен в субъекта. Субъект с неизвестной ролью или
// некорректным sub считается невалидным.
func (j *MakerImpl) ParsePrincipal(tokenStr string) (models.Principal, error) {
	const op = "jwt.ParsePrincipal"
	claims, err := j.ParseToken(tokenStr)
	if err != nil {
		return models.Principal{}, err
	}
	p := models.Principal{ID: claims.Subject, Role: models.Role(claims.Role)}
	if p.Role == models.RoleService && p.ID == "" {
		p = models.ServicePrincipal()
	}
	if !p.Valid() {
		return models.Principal{}, fmt.Errorf("%s: %w", op, ErrInvalidPrincipal)
	}
	return p, nil
}
