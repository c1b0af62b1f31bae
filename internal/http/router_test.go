package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-community-board/internal/models"
	"github.com/pribylovaa/go-community-board/internal/service"
	"github.com/pribylovaa/go-community-board/mocks"
)

type authFunc func(ctx context.Context, raw string) (models.Principal, error)

func (f authFunc) Authenticate(ctx context.Context, raw string) (models.Principal, error) {
	return f(ctx, raw)
}

var carol = models.Principal{
	ID:          uuid.MustParse("5f0c1e9a-3b2d-4e8f-9a1b-2c3d4e5f6a70"),
	Subject:     "carol@example.com",
	DisplayName: "carol",
	Role:        models.RoleJobSeeker,
}

func newTestRouter(t *testing.T, socket http.Handler) (http.Handler, *mocks.MockAuthService) {
	t.Helper()

	svc := mocks.NewMockAuthService(gomock.NewController(t))

	authn := authFunc(func(_ context.Context, raw string) (models.Principal, error) {
		if raw == "carol-token" {
			return carol, nil
		}
		return models.Principal{}, service.ErrExpiredToken
	})

	h := NewRouter(svc, Options{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Timeout:    time.Second,
		BasePath:   "/api",
		Authn:      authn,
		WSEndpoint: "/ws-stomp",
		Socket:     socket,
		Extra: map[string]http.Handler{
			"/livez": http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		},
	})

	return h, svc
}

func TestRouter_Me_RequiresAuth(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.NotEmpty(t, rr.Header().Get("X-Request-Id"))

	// Невалидный токен не блокирует гейт, но RequireAuth отвечает 401.
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer carol-token")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), carol.Subject)
}

func TestRouter_PublicRoutes_AnonymousAllowed(t *testing.T) {
	h, svc := newTestRouter(t, nil)

	svc.EXPECT().Reissue(gomock.Any(), "").Return(nil, service.ErrMalformedToken)

	req := httptest.NewRequest(http.MethodPost, "/api/reissue", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_Logout_PassesSubject(t *testing.T) {
	h, svc := newTestRouter(t, nil)

	svc.EXPECT().Logout(gomock.Any(), carol.Subject).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	req.Header.Set("Authorization", "Bearer carol-token")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_Socket_BypassesGateAndTimeout(t *testing.T) {
	var hasDeadline bool
	socket := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
		w.WriteHeader(http.StatusTeapot)
	})

	h, _ := newTestRouter(t, socket)

	req := httptest.NewRequest(http.MethodGet, "/ws-stomp", nil)
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusTeapot, rr.Code)
	require.False(t, hasDeadline)
}

func TestRouter_ExtraAndUnknown(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_ServiceFailure_Internal(t *testing.T) {
	h, svc := newTestRouter(t, nil)

	svc.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("pool closed"))

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"email":"carol@example.com","password":"pw"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
