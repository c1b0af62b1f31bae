package service

import "golang.org/x/crypto/bcrypt"

// PasswordVerifier сверяет пароль с сохранённым односторонним хэшем.
type PasswordVerifier interface {
	Verify(subject, plaintext string, storedHash []byte) bool
}

// PasswordHasher дополнительно умеет хэшировать пароль (регистрация).
type PasswordHasher interface {
	PasswordVerifier
	Hash(plaintext string) ([]byte, error)
}

// BcryptHasher — реализация на bcrypt. Cost <= 0 означает bcrypt.DefaultCost.
type BcryptHasher struct {
	Cost int
}

func (b BcryptHasher) Hash(plaintext string) ([]byte, error) {
	cost := b.Cost
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}

	return bcrypt.GenerateFromPassword([]byte(plaintext), cost)
}

func (BcryptHasher) Verify(_ string, plaintext string, storedHash []byte) bool {
	return bcrypt.CompareHashAndPassword(storedHash, []byte(plaintext)) == nil
}
