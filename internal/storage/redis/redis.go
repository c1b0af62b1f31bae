// Package redis — хранилище refresh-токенов в Redis.
//
// Схема ключей:
//   - <prefix>sub:<subject> — hash {h: хэш токена, exp: unix, upd: unix};
//   - <prefix>val:<hash>    — subject (обратный индекс для поиска по значению).
//
// Оба ключа живут до expires_at записи, поэтому просроченные записи
// Redis удаляет сам.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pribylovaa/go-community-board/internal/models"
	"github.com/pribylovaa/go-community-board/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "board:rt:"
	maxTxRetries  = 5

	fieldHash    = "h"
	fieldExpires = "exp"
	fieldUpdated = "upd"
)

// ErrTxConflict — запись subject'а менялась конкурентно дольше maxTxRetries попыток.
var ErrTxConflict = errors.New("redis: concurrent update conflict")

// Storage реализует storage.RefreshTokenStorage.
type Storage struct {
	rdb    *redis.Client
	prefix string
}

// New создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "board:rt:".
func New(ctx context.Context, redisURL, prefix string) (*Storage, error) {
	const op = "storage.redis.New"

	if prefix == "" {
		prefix = defaultPrefix
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{rdb: rdb, prefix: prefix}, nil
}

func (s *Storage) subKey(subject string) string { return s.prefix + "sub:" + subject }
func (s *Storage) valKey(hash string) string    { return s.prefix + "val:" + hash }

// PutRefreshToken перезаписывает запись subject'а и переносит обратный индекс.
func (s *Storage) PutRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.redis.PutRefreshToken"

	sk := s.subKey(token.Subject)
	vk := s.valKey(token.TokenHash)

	txf := func(tx *redis.Tx) error {
		old, err := tx.HGet(ctx, sk, fieldHash).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			if old != "" && old != token.TokenHash {
				p.Del(ctx, s.valKey(old))
			}
			p.HSet(ctx, sk, map[string]any{
				fieldHash:    token.TokenHash,
				fieldExpires: strconv.FormatInt(token.ExpiresAt.Unix(), 10),
				fieldUpdated: strconv.FormatInt(token.UpdatedAt.Unix(), 10),
			})
			p.ExpireAt(ctx, sk, token.ExpiresAt)
			p.Set(ctx, vk, token.Subject, 0)
			p.ExpireAt(ctx, vk, token.ExpiresAt)
			return nil
		})

		return err
	}

	if err := s.watch(ctx, txf, sk); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RefreshToken возвращает запись subject'а.
func (s *Storage) RefreshToken(ctx context.Context, subject string) (*models.RefreshToken, error) {
	const op = "storage.redis.RefreshToken"

	m, err := s.rdb.HGetAll(ctx, s.subKey(subject)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(m) == 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	token, err := decode(subject, m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// RefreshTokenByValue находит запись через обратный индекс.
func (s *Storage) RefreshTokenByValue(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	const op = "storage.redis.RefreshTokenByValue"

	subject, err := s.rdb.Get(ctx, s.valKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.RefreshToken(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Индекс мог пережить перезапись записи.
	if token.TokenHash != tokenHash {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return token, nil
}

// DeleteRefreshToken удаляет запись subject'а и её индекс; повторный вызов не ошибка.
func (s *Storage) DeleteRefreshToken(ctx context.Context, subject string) error {
	const op = "storage.redis.DeleteRefreshToken"

	sk := s.subKey(subject)

	txf := func(tx *redis.Tx) error {
		old, err := tx.HGet(ctx, sk, fieldHash).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, sk)
			if old != "" {
				p.Del(ctx, s.valKey(old))
			}
			return nil
		})

		return err
	}

	if err := s.watch(ctx, txf, sk); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteExpiredTokens ничего не делает: ключи истекают по EXPIREAT.
func (s *Storage) DeleteExpiredTokens(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Ping проверяет доступность Redis.
func (s *Storage) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close закрывает клиент Redis.
func (s *Storage) Close() error { return s.rdb.Close() }

// watch выполняет оптимистичную транзакцию с повтором при конфликте.
func (s *Storage) watch(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, keys...)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return err
	}

	return ErrTxConflict
}

func decode(subject string, m map[string]string) (*models.RefreshToken, error) {
	expUnix, err := strconv.ParseInt(m[fieldExpires], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad %q field: %w", fieldExpires, err)
	}

	updUnix, err := strconv.ParseInt(m[fieldUpdated], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad %q field: %w", fieldUpdated, err)
	}

	return &models.RefreshToken{
		Subject:   subject,
		TokenHash: m[fieldHash],
		ExpiresAt: time.Unix(expUnix, 0).UTC(),
		UpdatedAt: time.Unix(updUnix, 0).UTC(),
	}, nil
}

// Проверка на соответствие интерфейсу.
var _ storage.RefreshTokenStorage = (*Storage)(nil)
