// Package storage описывает контракты хранилищ пользователей и refresh-токенов.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/go-community-board/internal/models"
)

var (
	// ErrNotFound — запись не найдена (пользователь/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/имя).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создает нового пользователя в БД.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// DeleteUser удаляет пользователя; refresh-запись удаляется каскадно.
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// RefreshTokenStorage хранит не более одного refresh-токена на subject.
type RefreshTokenStorage interface {
	// PutRefreshToken вставляет или перезаписывает запись subject'а.
	PutRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RefreshToken возвращает запись subject'а.
	RefreshToken(ctx context.Context, subject string) (*models.RefreshToken, error)
	// RefreshTokenByValue находит запись по хэшу токена.
	RefreshTokenByValue(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	// DeleteRefreshToken удаляет запись subject'а. Отсутствие записи не ошибка.
	DeleteRefreshToken(ctx context.Context, subject string) error
	// DeleteExpiredTokens удаляет просроченные записи и возвращает их число.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStorage
	RefreshTokenStorage
	Close()
}
