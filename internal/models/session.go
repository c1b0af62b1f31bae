package models

import "time"

// Session — результат успешного логина.
//
// AccessToken отдаётся клиенту в теле ответа, RefreshToken уходит
// в HttpOnly-cookie и в хранилище (в виде хэша).
type Session struct {
	Principal        Principal
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Reissued — результат reissue. RefreshToken пуст, если ротация выключена.
type Reissued struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Rotated сообщает, был ли выпущен новый refresh-токен.
func (r Reissued) Rotated() bool {
	return r.RefreshToken != ""
}
