package models

import "time"

// RefreshToken — сохранённая сессия участника.
//
// На одного subject'а хранится не более одной записи; повторный логин
// перезаписывает её. Сам токен не хранится, только его хэш.
type RefreshToken struct {
	Subject   string
	TokenHash string
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// Expired сообщает, истекла ли запись к моменту now.
func (t RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
