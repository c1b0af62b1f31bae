package models

import (
	"time"

	"github.com/google/uuid"
)

// User — участник доски.
//
// Email служит subject'ом токенов, Name выводится в чате как отображаемое имя.
// PasswordHash — bcrypt-хэш; в открытом виде пароль нигде не хранится.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
