package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pribylovaa/go-community-board/internal/models"
	"github.com/pribylovaa/go-community-board/internal/storage"
)

// PutRefreshToken вставляет запись subject'а или перезаписывает существующую.
// При гонке двух логинов остаётся тот токен, чей upsert завершился последним.
func (s *Storage) PutRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.postgres.PutRefreshToken"

	query := `
		INSERT INTO refresh_tokens(subject, token_hash, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject) DO UPDATE
		SET token_hash = EXCLUDED.token_hash,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.Exec(ctx, query,
		token.Subject,
		token.TokenHash,
		token.ExpiresAt,
		token.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RefreshToken возвращает запись subject'а.
func (s *Storage) RefreshToken(ctx context.Context, subject string) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshToken"

	query := `
		SELECT subject, token_hash, expires_at, updated_at
		FROM refresh_tokens
		WHERE subject = $1
	`

	token, err := scanRefreshToken(s.db.QueryRow(ctx, query, subject))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// RefreshTokenByValue находит запись по хэшу токена.
func (s *Storage) RefreshTokenByValue(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByValue"

	query := `
		SELECT subject, token_hash, expires_at, updated_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	token, err := scanRefreshToken(s.db.QueryRow(ctx, query, tokenHash))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// DeleteRefreshToken удаляет запись subject'а; повторный вызов не ошибка.
func (s *Storage) DeleteRefreshToken(ctx context.Context, subject string) error {
	const op = "storage.postgres.DeleteRefreshToken"

	if _, err := s.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE subject = $1`, subject); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteExpiredTokens удаляет все просроченные токены.
func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredTokens"

	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at <= $1
	`

	tag, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

func scanRefreshToken(row pgx.Row) (*models.RefreshToken, error) {
	var token models.RefreshToken

	err := row.Scan(
		&token.Subject,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}

	return &token, nil
}
