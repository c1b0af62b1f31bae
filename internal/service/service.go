// service содержит бизнес-логику сессий доски:
// логин/логаут, reissue по refresh-токену с детектом кражи,
// разрешение участника по subject'у токена и управление аккаунтами.
//
// Основные аспекты:
//   - Service не хранит состояние запроса и безопасен для конкурентного
//     использования при потокобезопасных хранилищах.
//   - Все отказы аутентификации оборачивают ErrUnauthenticated; конкретная
//     причина нужна только для логов и метрик, транспорт её не раскрывает.
//   - Ошибки хранилищ, не связанные с аутентификацией, возвращаются как есть
//     (обёрнутые op) и маппятся транспортом в 500.
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/pribylovaa/go-community-board/internal/config"
	"github.com/pribylovaa/go-community-board/internal/metrics"
	"github.com/pribylovaa/go-community-board/internal/storage"
	"github.com/pribylovaa/go-community-board/internal/token"
	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthenticated — единственный внешне видимый класс отказа аутентификации.
var ErrUnauthenticated = errors.New("unauthenticated")

var (
	ErrMalformedToken    = fmt.Errorf("%w: malformed token", ErrUnauthenticated)
	ErrExpiredToken      = fmt.Errorf("%w: expired token", ErrUnauthenticated)
	ErrSignatureMismatch = fmt.Errorf("%w: signature mismatch", ErrUnauthenticated)
	// ErrNoSession — для subject'а нет сохранённого refresh-токена (логаут или никогда не выдавался).
	ErrNoSession = fmt.Errorf("%w: no session", ErrUnauthenticated)
	// ErrTokenMismatch — предъявлен валидный, но не текущий refresh-токен; запись удаляется.
	ErrTokenMismatch    = fmt.Errorf("%w: token mismatch", ErrUnauthenticated)
	ErrUnknownPrincipal = fmt.Errorf("%w: unknown principal", ErrUnauthenticated)
	// ErrInvalidCredentials — пара email/пароль неверна или пользователь не найден.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
)

var (
	// ErrEmailTaken — e-mail уже занят. Транспорт: 409.
	ErrEmailTaken = errors.New("email already taken")
	// ErrAccountExists — конфликт уникальности при сохранении (email или имя). Транспорт: 409.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidEmail — e-mail не проходит валидацию. Транспорт: 400.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrInvalidName — имя пустое или слишком длинное. Транспорт: 400.
	ErrInvalidName = errors.New("invalid display name")
	// ErrWeakPassword — пароль не удовлетворяет политике. Транспорт: 400.
	ErrWeakPassword = errors.New("password is too weak")
	// ErrPasswordTooLong — пароль длиннее, чем принимает bcrypt. Транспорт: 400.
	ErrPasswordTooLong = errors.New("password is longer than 72 bytes")
	// ErrEmptyPassword — пароль пустой. Транспорт: 400.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrInvalidRole — неизвестная роль или роль, недоступная при регистрации. Транспорт: 400.
	ErrInvalidRole = errors.New("invalid role")
	// ErrForbidden — участник не вправе выполнить операцию. Транспорт: 403.
	ErrForbidden = errors.New("forbidden")
	// ErrUserNotFound — пользователь не найден. Транспорт: 404.
	ErrUserNotFound = errors.New("user not found")
)

// Причины отказа reissue/аутентификации для логов и метрик.
const (
	ReasonMalformed         = "malformed"
	ReasonExpired           = "expired"
	ReasonSignatureMismatch = "signature_mismatch"
	ReasonNoSession         = "no_session"
	ReasonTokenMismatch     = "token_mismatch"
	ReasonUnknownPrincipal  = "unknown_principal"
	ReasonBadCredentials    = "invalid_credentials"
	ReasonInternal          = "internal"
)

// Reason возвращает причину отказа для логов; "" для nil.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrExpiredToken):
		return ReasonExpired
	case errors.Is(err, ErrSignatureMismatch):
		return ReasonSignatureMismatch
	case errors.Is(err, ErrNoSession):
		return ReasonNoSession
	case errors.Is(err, ErrTokenMismatch):
		return ReasonTokenMismatch
	case errors.Is(err, ErrUnknownPrincipal):
		return ReasonUnknownPrincipal
	case errors.Is(err, ErrMalformedToken):
		return ReasonMalformed
	case errors.Is(err, ErrInvalidCredentials):
		return ReasonBadCredentials
	default:
		return ReasonInternal
	}
}

// fromToken переводит ошибку кодека в таксономию сервиса.
func fromToken(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrExpiredToken
	case errors.Is(err, token.ErrSignatureMismatch):
		return ErrSignatureMismatch
	default:
		return ErrMalformedToken
	}
}

// Service описывает бизнес-логику сессий.
type Service struct {
	users     storage.UserStorage
	tokens    storage.RefreshTokenStorage
	codec     *token.Codec
	resolver  *Resolver
	passwords PasswordHasher
	metrics   *metrics.Metrics
	cfg       config.AuthConfig
	now       func() time.Time
}

// New создаёт новый экземпляр Service.
func New(users storage.UserStorage, tokens storage.RefreshTokenStorage, codec *token.Codec, cfg config.AuthConfig) *Service {
	return &Service{
		users:     users,
		tokens:    tokens,
		codec:     codec,
		resolver:  NewResolver(users),
		passwords: BcryptHasher{Cost: bcrypt.DefaultCost},
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetMetrics подключает метрики (опционально).
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetPasswordHasher подменяет реализацию хэширования паролей.
func (s *Service) SetPasswordHasher(h PasswordHasher) {
	s.passwords = h
}

// Resolver возвращает резолвер участников сервиса.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}
