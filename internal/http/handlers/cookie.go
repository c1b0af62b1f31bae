package handlers

import (
	"net/http"
	"time"
)

// RefreshCookie — имя HttpOnly-cookie с refresh-токеном.
const RefreshCookie = "refreshToken"

type cookieConfig struct {
	path   string
	secure bool
}

func (c cookieConfig) cookiePath() string {
	if c.path == "" {
		return "/"
	}
	return c.path
}

// setRefreshCookie ставит refresh-cookie с Max-Age, равным остатку жизни токена.
func (h *Handlers) setRefreshCookie(w http.ResponseWriter, value string, expiresAt time.Time) {
	maxAge := int(expiresAt.Sub(h.now()).Seconds())
	if maxAge <= 0 {
		h.clearRefreshCookie(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    value,
		Path:     h.cookie.cookiePath(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearRefreshCookie перезаписывает cookie пустым значением с Max-Age=0.
func (h *Handlers) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     h.cookie.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func refreshFromCookie(r *http.Request) string {
	c, err := r.Cookie(RefreshCookie)
	if err != nil {
		return ""
	}
	return c.Value
}
