// Package auth переносит аутентифицированного участника между слоями:
// разбор заголовка Authorization и хранение Principal в context.Context.
package auth

import (
	"context"
	"strings"

	"github.com/pribylovaa/go-community-board/internal/models"
)

// Header — имя заголовка (HTTP и нативный заголовок STOMP CONNECT).
const Header = "Authorization"

// BearerPrefix сравнивается с учётом регистра, ровно один пробел.
const BearerPrefix = "Bearer "

// Authenticator проверяет access-токен и возвращает его владельца.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (models.Principal, error)
}

type principalKey struct{}

// WithPrincipal кладёт участника в контекст запроса.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom достаёт участника из контекста.
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(models.Principal)
	return p, ok
}

// BearerToken извлекает токен из значения заголовка.
// Заголовок без точного префикса "Bearer " или с пустым токеном означает
// отсутствие токена, а не ошибку.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", false
	}

	tok := header[len(BearerPrefix):]
	if tok == "" {
		return "", false
	}

	return tok, true
}
