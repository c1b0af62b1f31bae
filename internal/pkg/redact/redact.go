// Package redact маскирует персональные данные и секреты перед логированием.
package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Email оставляет первые две руны локальной части и домен.
func Email(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***"
	}

	if r := []rune(local); len(r) > 2 {
		local = string(r[:2]) + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

// Token заменяет токен коротким отпечатком: по нему можно сопоставить
// записи логов, но нельзя восстановить сам токен.
func Token(raw string) string {
	if raw == "" {
		return "[EMPTY_TOKEN]"
	}

	sum := sha256.Sum256([]byte(raw))
	return "tok:" + hex.EncodeToString(sum[:4])
}

func Password() string { return "[REDACTED_PASSWORD]" }
