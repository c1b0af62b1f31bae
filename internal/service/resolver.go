package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/pribylovaa/go-community-board/internal/models"
	"github.com/pribylovaa/go-community-board/internal/storage"
	"github.com/pribylovaa/go-community-board/internal/token"
)

// Resolver загружает участника по subject'у проверенного токена.
type Resolver struct {
	users storage.UserStorage
}

func NewResolver(users storage.UserStorage) *Resolver {
	return &Resolver{users: users}
}

// FindBySubject возвращает участника с текущей ролью из хранилища.
func (r *Resolver) FindBySubject(ctx context.Context, subject string) (models.Principal, error) {
	const op = "service.resolver.FindBySubject"

	user, err := r.users.UserByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Principal{}, fmt.Errorf("%s: %w", op, ErrUnknownPrincipal)
		}

		return models.Principal{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.PrincipalFromUser(*user), nil
}

// Authenticate проверяет access-токен и разрешает его владельца.
// Используется обоими гейтами: HTTP и STOMP CONNECT.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (models.Principal, error) {
	const op = "service.resolver.Authenticate"

	claims, err := s.codec.Validate(rawToken, token.KindAccess)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%s: %w: %w", op, fromToken(err), err)
	}

	p, err := s.resolver.FindBySubject(ctx, claims.Subject)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}
