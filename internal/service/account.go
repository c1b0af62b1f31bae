package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/pribylovaa/go-community-board/internal/models"
	"github.com/pribylovaa/go-community-board/internal/pkg/log"
	"github.com/pribylovaa/go-community-board/internal/pkg/redact"
	"github.com/pribylovaa/go-community-board/internal/storage"
)

const (
	maxNameLen = 30
	// bcrypt не принимает пароли длиннее 72 байт.
	maxPasswordBytes = 72
)

// Register создаёт участника. Роль ADMIN через регистрацию не выдаётся.
func (s *Service) Register(ctx context.Context, email, name, password string, role models.Role) (*models.User, error) {
	const op = "service.account.Register"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	normName, err := validateName(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := validatePassword(password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !role.Valid() || role == models.RoleAdmin {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidRole)
	}

	_, err = s.users.UserByEmail(ctx, normEmail)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        normEmail,
		Name:         normName,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrAccountExists)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_registered",
		slog.String("op", op),
		slog.String("email", redact.Email(user.Email)),
		slog.String("role", string(user.Role)),
	)

	return user, nil
}

// DeleteAccount удаляет участника id от имени actor и сносит его refresh-запись.
// Удалить можно себя, администратор может удалить любого.
// self сообщает, удалил ли участник собственный аккаунт (нужно очистить cookie).
func (s *Service) DeleteAccount(ctx context.Context, actor models.Principal, id uuid.UUID) (self bool, err error) {
	const op = "service.account.DeleteAccount"

	self = actor.ID == id
	if !self && !actor.IsAdmin() {
		return false, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	user, err := s.users.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.users.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	// В Postgres запись уйдёт каскадно, в Redis — только так.
	if err := s.tokens.DeleteRefreshToken(ctx, user.Email); err != nil {
		log.From(ctx).Warn("account_refresh_delete_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	log.From(ctx).Info("account_deleted",
		slog.String("op", op),
		slog.String("email", redact.Email(user.Email)),
		slog.Bool("self", self),
	)

	return self, nil
}

// validateEmail проверяет базовый формат email и обрезает пробелы снаружи.
func validateEmail(raw string) (string, error) {
	const op = "service.account.validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if n := len([]rune(name)); n == 0 || n > maxNameLen {
		return "", ErrInvalidName
	}

	return name, nil
}

// validatePassword: длина >= 8, хотя бы одна строчная, заглавная, цифра и спецсимвол.
func validatePassword(pw string) error {
	const op = "service.account.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if len(pw) > maxPasswordBytes {
		return fmt.Errorf("%s: %w", op, ErrPasswordTooLong)
	}

	if len([]rune(pw)) < 8 {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !(hasLower && hasUpper && hasDigit && hasSpecial) {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}
