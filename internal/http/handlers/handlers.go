package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-community-board/internal/config"
	"github.com/pribylovaa/go-community-board/internal/models"
)

// AuthService — то, что хендлерам нужно от сервиса сессий.
type AuthService interface {
	Register(ctx context.Context, email, name, password string, role models.Role) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.Session, error)
	Logout(ctx context.Context, subject string) error
	Reissue(ctx context.Context, refreshToken string) (*models.Reissued, error)
	DeleteAccount(ctx context.Context, actor models.Principal, id uuid.UUID) (bool, error)
}

// Handlers агрегирует зависимости REST-эндпоинтов.
type Handlers struct {
	svc    AuthService
	cookie cookieConfig
	now    func() time.Time
}

func New(svc AuthService, cfg config.AuthConfig) *Handlers {
	return &Handlers{
		svc: svc,
		cookie: cookieConfig{
			path:   cfg.CookiePath,
			secure: cfg.CookieSecure,
		},
		now: time.Now,
	}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}
