package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pribylovaa/go-community-board/internal/models"
	"github.com/pribylovaa/go-community-board/internal/pkg/log"
	"github.com/pribylovaa/go-community-board/internal/pkg/redact"
	"github.com/pribylovaa/go-community-board/internal/storage"
	"github.com/pribylovaa/go-community-board/internal/token"
)

// Login проверяет учётные данные и открывает новую сессию.
// Сохранённый ранее refresh-токен участника перезаписывается: после
// повторного логина предыдущий refresh перестаёт проходить Reissue.
func (s *Service) Login(ctx context.Context, email, password string) (*models.Session, error) {
	const op = "service.session.Login"

	lg := log.From(ctx)

	normEmail, err := validateEmail(email)
	if err != nil || password == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.users.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Info("login_unknown_email",
				slog.String("op", op),
				slog.String("email", redact.Email(normEmail)),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		lg.Error("login_user_lookup_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !s.passwords.Verify(user.Email, password, user.PasswordHash) {
		lg.Info("login_bad_password",
			slog.String("op", op),
			slog.String("email", redact.Email(user.Email)),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	sess, err := s.openSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Issued("login")
	lg.Info("login_ok",
		slog.String("op", op),
		slog.String("email", redact.Email(user.Email)),
		slog.String("refresh", redact.Token(sess.RefreshToken)),
	)

	return sess, nil
}

// openSession выпускает access+refresh и сохраняет refresh (upsert по subject).
func (s *Service) openSession(ctx context.Context, user *models.User) (*models.Session, error) {
	const op = "service.session.openSession"

	access, accessExp, err := s.codec.IssueAccess(user.Email, user.Role.Key(), s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh, refreshExp, err := s.storeRefresh(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.Session{
		Principal:        models.PrincipalFromUser(*user),
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// storeRefresh выпускает refresh-токен и записывает его хэш вместо прежнего.
func (s *Service) storeRefresh(ctx context.Context, subject string) (string, time.Time, error) {
	const op = "service.session.storeRefresh"

	refresh, exp, err := s.codec.IssueRefresh(subject, s.cfg.RefreshTokenTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	rec := &models.RefreshToken{
		Subject:   subject,
		TokenHash: token.Hash(refresh),
		ExpiresAt: exp,
		UpdatedAt: s.now().UTC(),
	}

	if err := s.tokens.PutRefreshToken(ctx, rec); err != nil {
		log.From(ctx).Error("save_refresh_token_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return refresh, exp, nil
}

// Logout удаляет сохранённый refresh-токен. Повторный вызов не ошибка.
func (s *Service) Logout(ctx context.Context, subject string) error {
	const op = "service.session.Logout"

	if err := s.tokens.DeleteRefreshToken(ctx, subject); err != nil {
		log.From(ctx).Error("logout_delete_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("logout_ok",
		slog.String("op", op),
		slog.String("email", redact.Email(subject)),
	)

	return nil
}

// Reissue выпускает новый access-токен по refresh-токену.
//
// Порядок шагов фиксирован:
//  1. проверка подписи и срока; при отказе запись с тем же значением
//     (если нашлась) удаляется и возвращается отказ;
//  2. subject из токена;
//  3. сохранённая запись subject'а, иначе ErrNoSession;
//  4. точное сравнение с сохранённым значением; при расхождении запись
//     удаляется (отзывается и текущая сессия) и возвращается ErrTokenMismatch;
//  5. новый access-токен с текущей ролью участника;
//  6. результат.
//
// При auth.rotate_refresh_on_reissue дополнительно выпускается и сохраняется
// новый refresh-токен.
func (s *Service) Reissue(ctx context.Context, presented string) (res *models.Reissued, err error) {
	const op = "service.session.Reissue"

	lg := log.From(ctx).With(slog.String("refresh", redact.Token(presented)))

	defer func() {
		if err != nil && errors.Is(err, ErrUnauthenticated) {
			s.metrics.ReissueFailed(Reason(err))
		}
	}()

	// 1.
	claims, verr := s.codec.Validate(presented, token.KindRefresh)
	if verr != nil {
		reason := fromToken(verr)
		lg.Warn("reissue_token_invalid",
			slog.String("op", op),
			slog.String("reason", Reason(reason)),
			slog.String("err", verr.Error()),
		)
		s.dropStale(ctx, presented)
		return nil, fmt.Errorf("%s: %w", op, reason)
	}

	// 2.
	subject := claims.Subject

	// 3.
	rec, err := s.tokens.RefreshToken(ctx, subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Info("reissue_no_session",
				slog.String("op", op),
				slog.String("email", redact.Email(subject)),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrNoSession)
		}

		lg.Error("refresh_lookup_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// 4.
	if !token.EqualHash(rec.TokenHash, token.Hash(presented)) {
		lg.Warn("reissue_token_mismatch",
			slog.String("op", op),
			slog.String("email", redact.Email(subject)),
		)
		if derr := s.tokens.DeleteRefreshToken(ctx, subject); derr != nil {
			lg.Error("reissue_revoke_failed",
				slog.String("op", op),
				slog.String("err", derr.Error()),
			)
		}
		return nil, fmt.Errorf("%s: %w", op, ErrTokenMismatch)
	}

	// 5.
	principal, err := s.resolver.FindBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrUnknownPrincipal) {
			lg.Warn("reissue_unknown_principal",
				slog.String("op", op),
				slog.String("email", redact.Email(subject)),
			)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	access, accessExp, err := s.codec.IssueAccess(subject, principal.Role.Key(), s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res = &models.Reissued{AccessToken: access, AccessExpiresAt: accessExp}
	s.metrics.Issued("reissue")

	if s.cfg.RotateRefreshOnReissue {
		refresh, refreshExp, err := s.storeRefresh(ctx, subject)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res.RefreshToken = refresh
		res.RefreshExpiresAt = refreshExp
		s.metrics.Issued("rotate")
	}

	// 6.
	return res, nil
}

// dropStale удаляет запись, хранящую отвергнутое значение (best-effort).
func (s *Service) dropStale(ctx context.Context, presented string) {
	const op = "service.session.dropStale"

	if strings.TrimSpace(presented) == "" {
		return
	}

	lg := log.From(ctx)

	rec, err := s.tokens.RefreshTokenByValue(ctx, token.Hash(presented))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			lg.Warn("stale_refresh_lookup_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
		return
	}

	if err := s.tokens.DeleteRefreshToken(ctx, rec.Subject); err != nil {
		lg.Warn("stale_refresh_delete_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return
	}

	lg.Info("stale_refresh_deleted",
		slog.String("op", op),
		slog.String("email", redact.Email(rec.Subject)),
	)
}

// CleanupExpired удаляет просроченные refresh-записи (фоновый janitor).
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	const op = "service.session.CleanupExpired"

	n, err := s.tokens.DeleteExpiredTokens(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.JanitorDeleted(n)

	return n, nil
}
