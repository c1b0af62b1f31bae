package token

import (
	"encoding/base64"
	"errors"
)

// minDecodedKeyLen — минимальная длина ключа, при которой секрет
// трактуется как base64 (256 бит для HS256).
const minDecodedKeyLen = 32

// ErrEmptySecret возвращается NewKey для пустого секрета.
var ErrEmptySecret = errors.New("token: empty signing secret")

// Key — неизменяемый симметричный ключ подписи.
// Создаётся один раз при старте процесса и передаётся в New.
type Key struct {
	b []byte
}

// NewKey выводит ключ из секрета конфигурации.
// Секрет, являющийся корректным base64 длиной от 32 байт, декодируется;
// иначе используются его байты как есть.
func NewKey(secret string) (Key, error) {
	if secret == "" {
		return Key{}, ErrEmptySecret
	}

	if raw, err := base64.StdEncoding.DecodeString(secret); err == nil && len(raw) >= minDecodedKeyLen {
		return Key{b: raw}, nil
	}

	b := make([]byte, len(secret))
	copy(b, secret)

	return Key{b: b}, nil
}

// bytes возвращает копию ключа для подписи.
func (k Key) bytes() []byte {
	out := make([]byte, len(k.b))
	copy(out, k.b)
	return out
}

func (k Key) empty() bool {
	return len(k.b) == 0
}
