package token

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalid — общий класс ошибок валидации. Все остальные ошибки пакета
// оборачивают его, поэтому вызывающему достаточно errors.Is(err, ErrInvalid).
var ErrInvalid = errors.New("invalid token")

var (
	ErrMalformed         = fmt.Errorf("%w: malformed", ErrInvalid)
	ErrExpired           = fmt.Errorf("%w: expired", ErrInvalid)
	ErrSignatureMismatch = fmt.Errorf("%w: signature mismatch", ErrInvalid)
	ErrUnsupported       = fmt.Errorf("%w: unsupported", ErrInvalid)
	ErrMissingClaim      = fmt.Errorf("%w: missing claim", ErrInvalid)
)

// classify сводит ошибки jwt к ошибкам пакета.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureMismatch
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrUnsupported
	}
}
