// Package token выпускает и проверяет подписанные HS256 access/refresh токены.
package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind — назначение токена (claim "typ").
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims — полезная нагрузка токена.
//
// Role кладётся только в access-токен (claim "auth", значение вида "ROLE_MENTOR").
// Оба выпускаемых вида несут случайный jti: iat имеет секундную точность,
// а два выпуска в одну секунду должны давать разные значения.
type Claims struct {
	Role string `json:"auth,omitempty"`
	Kind Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// Option настраивает Codec.
type Option func(*Codec)

// WithClock подменяет источник времени (тесты).
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIssuer задаёт claim "iss" при выпуске и требует его при проверке.
func WithIssuer(iss string) Option {
	return func(c *Codec) { c.issuer = iss }
}

// Codec подписывает и проверяет токены одним ключом.
// Безопасен для конкурентного использования.
type Codec struct {
	key    Key
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// New создаёт Codec с заданным ключом.
func New(key Key, opts ...Option) *Codec {
	c := &Codec{key: key, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	popts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		popts = append(popts, jwt.WithIssuer(c.issuer))
	}
	c.parser = jwt.NewParser(popts...)

	return c
}

// Sign сериализует и подписывает claims. Одинаковые claims и ключ дают одинаковый токен.
func (c *Codec) Sign(claims Claims) (string, error) {
	const op = "token.codec.Sign"

	if c.key.empty() {
		return "", fmt.Errorf("%s: %w", op, ErrEmptySecret)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key.bytes())
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// IssueAccess выпускает access-токен и возвращает момент его истечения.
func (c *Codec) IssueAccess(subject, role string, ttl time.Duration) (string, time.Time, error) {
	const op = "token.codec.IssueAccess"

	if subject == "" || role == "" {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, ErrMissingClaim)
	}

	claims, exp := c.claims(subject, KindAccess, ttl)
	claims.Role = role
	claims.ID = uuid.NewString()

	signed, err := c.Sign(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

// IssueRefresh выпускает refresh-токен и возвращает момент его истечения.
func (c *Codec) IssueRefresh(subject string, ttl time.Duration) (string, time.Time, error) {
	const op = "token.codec.IssueRefresh"

	if subject == "" {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, ErrMissingClaim)
	}

	claims, exp := c.claims(subject, KindRefresh, ttl)
	claims.ID = uuid.NewString()

	signed, err := c.Sign(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

func (c *Codec) claims(subject string, kind Kind, ttl time.Duration) (Claims, time.Time) {
	now := c.now().UTC()
	exp := jwt.NewNumericDate(now.Add(ttl))

	return Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
	}, exp.Time
}

// Validate проверяет подпись, структуру и срок действия токена.
// Токен считается истёкшим при now >= exp. Если want не пуст,
// токен другого назначения отклоняется как ErrMalformed.
func (c *Codec) Validate(raw string, want Kind) (*Claims, error) {
	const op = "token.codec.Validate"

	var claims Claims
	tok, err := c.parser.ParseWithClaims(raw, &claims, c.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}

	if !tok.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrUnsupported)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingClaim)
	}

	if want != "" && claims.Kind != want {
		return nil, fmt.Errorf("%s: %w: kind %q", op, ErrMalformed, claims.Kind)
	}

	return &claims, nil
}

func (c *Codec) keyFunc(*jwt.Token) (any, error) {
	if c.key.empty() {
		return nil, ErrEmptySecret
	}

	return c.key.bytes(), nil
}

// SubjectOf извлекает subject без проверки подписи.
// Вызывать только для токена, уже прошедшего Validate.
func (c *Codec) SubjectOf(raw string) (string, error) {
	claims, err := c.unverified(raw)
	if err != nil {
		return "", err
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("token.codec.SubjectOf: %w", ErrMissingClaim)
	}

	return claims.Subject, nil
}

// RoleOf извлекает claim роли без проверки подписи.
func (c *Codec) RoleOf(raw string) (string, error) {
	claims, err := c.unverified(raw)
	if err != nil {
		return "", err
	}

	if claims.Role == "" {
		return "", fmt.Errorf("token.codec.RoleOf: %w", ErrMissingClaim)
	}

	return claims.Role, nil
}

func (c *Codec) unverified(raw string) (*Claims, error) {
	const op = "token.codec.unverified"

	var claims Claims
	if _, _, err := c.parser.ParseUnverified(raw, &claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}

	return &claims, nil
}

// Hash возвращает SHA-256 токена в base64url; в хранилище попадает только он.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// EqualHash сравнивает хэши за постоянное время.
func EqualHash(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
