package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-community-board/internal/auth"
	"github.com/pribylovaa/go-community-board/internal/config"
	apierrors "github.com/pribylovaa/go-community-board/internal/http/errors"
	"github.com/pribylovaa/go-community-board/internal/models"
	"github.com/pribylovaa/go-community-board/internal/service"
	"github.com/pribylovaa/go-community-board/mocks"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

var bob = models.Principal{
	ID:          uuid.MustParse("0b7e4f2c-6a3d-4c5e-8f10-2a9d5b6c7e01"),
	Subject:     "bob@example.com",
	DisplayName: "bob",
	Role:        models.RoleIncumbent,
}

func newHandlers(t *testing.T) (*Handlers, *mocks.MockAuthService) {
	t.Helper()

	ctrl := gomock.NewController(t)
	svc := mocks.NewMockAuthService(ctrl)

	h := New(svc, config.AuthConfig{CookiePath: "/", CookieSecure: true})
	h.now = func() time.Time { return fixedNow }

	return h, svc
}

func jsonReq(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withPrincipal(req *http.Request, p models.Principal) *http.Request {
	return req.WithContext(auth.WithPrincipal(req.Context(), p))
}

func refreshCookieOf(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range rr.Result().Cookies() {
		if c.Name == RefreshCookie {
			return c
		}
	}

	return nil
}

func decodeErr(t *testing.T, rr *httptest.ResponseRecorder) apierrors.ErrorResponse {
	t.Helper()

	var env apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func TestSignup_Created(t *testing.T) {
	h, svc := newHandlers(t)

	user := &models.User{ID: bob.ID, Email: bob.Subject, Name: bob.DisplayName, Role: models.RoleIncumbent}
	svc.EXPECT().
		Register(gomock.Any(), "bob@example.com", "bob", "secret-pass", models.RoleIncumbent).
		Return(user, nil)

	rr := httptest.NewRecorder()
	h.Signup(rr, jsonReq(http.MethodPost, "/api/signup",
		`{"email":"bob@example.com","password":"secret-pass","name":"bob","role":"INCUMBENT"}`))

	require.Equal(t, http.StatusCreated, rr.Code)

	var out MemberResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, bob.ID.String(), out.ID)
	require.Equal(t, "INCUMBENT", out.Role)
}

func TestSignup_BadInput(t *testing.T) {
	h, _ := newHandlers(t)

	cases := map[string]string{
		"broken_json":   `{"email":`,
		"unknown_field": `{"email":"a@b.c","password":"x","name":"n","role":"MENTOR","admin":true}`,
		"unknown_role":  `{"email":"a@b.c","password":"x","name":"n","role":"CEO"}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.Signup(rr, jsonReq(http.MethodPost, "/api/signup", body))

			require.Equal(t, http.StatusBadRequest, rr.Code)
			require.Equal(t, "invalid_argument", decodeErr(t, rr).Error.Code)
		})
	}
}

func TestSignup_EmailTaken_Conflict(t *testing.T) {
	h, svc := newHandlers(t)

	svc.EXPECT().Register(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("service.account.Register: %w", service.ErrEmailTaken))

	rr := httptest.NewRecorder()
	h.Signup(rr, jsonReq(http.MethodPost, "/api/signup",
		`{"email":"bob@example.com","password":"secret-pass","name":"bob","role":"MENTOR"}`))

	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestLogin_SetsCookieAndReturnsAccess(t *testing.T) {
	h, svc := newHandlers(t)

	sess := &models.Session{
		Principal:        bob,
		AccessToken:      "AT1",
		AccessExpiresAt:  fixedNow.Add(30 * time.Minute),
		RefreshToken:     "RT1",
		RefreshExpiresAt: fixedNow.Add(14 * 24 * time.Hour),
	}
	svc.EXPECT().Login(gomock.Any(), "bob@example.com", "secret-pass").Return(sess, nil)

	rr := httptest.NewRecorder()
	h.Login(rr, jsonReq(http.MethodPost, "/api/login", `{"email":"bob@example.com","password":"secret-pass"}`))

	require.Equal(t, http.StatusOK, rr.Code)

	var out TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, "AT1", out.AccessToken)
	require.Equal(t, sess.AccessExpiresAt.Unix(), out.AccessExpiresAt)
	require.NotContains(t, rr.Body.String(), "RT1")

	c := refreshCookieOf(t, rr)
	require.NotNil(t, c)
	require.Equal(t, "RT1", c.Value)
	require.True(t, c.HttpOnly)
	require.True(t, c.Secure)
	require.Equal(t, "/", c.Path)
	require.Equal(t, int((14 * 24 * time.Hour).Seconds()), c.MaxAge)
	require.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestLogin_BadCredentials_401_NoCookie(t *testing.T) {
	h, svc := newHandlers(t)

	svc.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("service.session.Login: %w", service.ErrInvalidCredentials))

	rr := httptest.NewRecorder()
	h.Login(rr, jsonReq(http.MethodPost, "/api/login", `{"email":"bob@example.com","password":"nope"}`))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "unauthenticated", decodeErr(t, rr).Error.Code)
	require.Nil(t, refreshCookieOf(t, rr))
}

func TestLogout_DeletesAndClearsCookie(t *testing.T) {
	h, svc := newHandlers(t)

	svc.EXPECT().Logout(gomock.Any(), bob.Subject).Return(nil)

	rr := httptest.NewRecorder()
	h.Logout(rr, withPrincipal(httptest.NewRequest(http.MethodPost, "/api/logout", nil), bob))

	require.Equal(t, http.StatusOK, rr.Code)

	c := refreshCookieOf(t, rr)
	require.NotNil(t, c)
	require.Empty(t, c.Value)
	require.Less(t, c.MaxAge, 0) // Set-Cookie: Max-Age=0
	require.Contains(t, rr.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestLogout_Anonymous_401(t *testing.T) {
	h, _ := newHandlers(t)

	rr := httptest.NewRecorder()
	h.Logout(rr, httptest.NewRequest(http.MethodPost, "/api/logout", nil))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestReissue_NoRotation_CookieUntouched(t *testing.T) {
	h, svc := newHandlers(t)

	svc.EXPECT().Reissue(gomock.Any(), "RT1").Return(&models.Reissued{
		AccessToken:     "AT2",
		AccessExpiresAt: fixedNow.Add(30 * time.Minute),
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/reissue", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "RT1"})

	rr := httptest.NewRecorder()
	h.Reissue(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var out TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, "AT2", out.AccessToken)
	require.Empty(t, rr.Header().Values("Set-Cookie"))
}

func TestReissue_Rotation_RewritesCookie(t *testing.T) {
	h, svc := newHandlers(t)

	svc.EXPECT().Reissue(gomock.Any(), "RT1").Return(&models.Reissued{
		AccessToken:      "AT2",
		AccessExpiresAt:  fixedNow.Add(30 * time.Minute),
		RefreshToken:     "RT2",
		RefreshExpiresAt: fixedNow.Add(time.Hour),
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/reissue", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "RT1"})

	rr := httptest.NewRecorder()
	h.Reissue(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	c := refreshCookieOf(t, rr)
	require.NotNil(t, c)
	require.Equal(t, "RT2", c.Value)
	require.Equal(t, 3600, c.MaxAge)
}

func TestReissue_MissingCookie_PassesEmptyToService(t *testing.T) {
	h, svc := newHandlers(t)

	svc.EXPECT().Reissue(gomock.Any(), "").
		Return(nil, fmt.Errorf("service.session.Reissue: %w", service.ErrMalformedToken))

	rr := httptest.NewRecorder()
	h.Reissue(rr, httptest.NewRequest(http.MethodPost, "/api/reissue", nil))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestReissue_Failures_Uniform401(t *testing.T) {
	reasons := []error{
		service.ErrExpiredToken,
		service.ErrSignatureMismatch,
		service.ErrNoSession,
		service.ErrTokenMismatch,
		service.ErrUnknownPrincipal,
	}

	var bodies []string
	for _, reason := range reasons {
		h, svc := newHandlers(t)
		svc.EXPECT().Reissue(gomock.Any(), "RT").Return(nil, fmt.Errorf("service.session.Reissue: %w", reason))

		req := httptest.NewRequest(http.MethodPost, "/api/reissue", nil)
		req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "RT"})

		rr := httptest.NewRecorder()
		h.Reissue(rr, req)

		require.Equal(t, http.StatusUnauthorized, rr.Code, reason.Error())
		require.Empty(t, rr.Header().Values("Set-Cookie"))
		bodies = append(bodies, rr.Body.String())
	}

	for _, b := range bodies[1:] {
		require.Equal(t, bodies[0], b)
	}
}

func TestMe(t *testing.T) {
	h, _ := newHandlers(t)

	rr := httptest.NewRecorder()
	h.Me(rr, withPrincipal(httptest.NewRequest(http.MethodGet, "/api/me", nil), bob))

	require.Equal(t, http.StatusOK, rr.Code)

	var out MemberResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, MemberResponse{
		ID:    bob.ID.String(),
		Email: bob.Subject,
		Name:  bob.DisplayName,
		Role:  "INCUMBENT",
	}, out)

	rr = httptest.NewRecorder()
	h.Me(rr, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func deleteRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()
	r.Delete("/members/{memberId}", h.DeleteMember)
	return r
}

func TestDeleteMember_Self_ClearsCookie(t *testing.T) {
	h, svc := newHandlers(t)

	svc.EXPECT().DeleteAccount(gomock.Any(), bob, bob.ID).Return(true, nil)

	req := withPrincipal(httptest.NewRequest(http.MethodDelete, "/members/"+bob.ID.String(), nil), bob)
	rr := httptest.NewRecorder()
	deleteRouter(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	c := refreshCookieOf(t, rr)
	require.NotNil(t, c)
	require.Empty(t, c.Value)
}

func TestDeleteMember_ByAdmin_KeepsCookie(t *testing.T) {
	h, svc := newHandlers(t)

	admin := models.Principal{ID: uuid.New(), Subject: "root@example.com", Role: models.RoleAdmin}
	svc.EXPECT().DeleteAccount(gomock.Any(), admin, bob.ID).Return(false, nil)

	req := withPrincipal(httptest.NewRequest(http.MethodDelete, "/members/"+bob.ID.String(), nil), admin)
	rr := httptest.NewRecorder()
	deleteRouter(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Nil(t, refreshCookieOf(t, rr))
}

func TestDeleteMember_Errors(t *testing.T) {
	t.Run("bad_id", func(t *testing.T) {
		h, _ := newHandlers(t)

		req := withPrincipal(httptest.NewRequest(http.MethodDelete, "/members/42", nil), bob)
		rr := httptest.NewRecorder()
		deleteRouter(h).ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("forbidden", func(t *testing.T) {
		h, svc := newHandlers(t)

		other := uuid.New()
		svc.EXPECT().DeleteAccount(gomock.Any(), bob, other).
			Return(false, fmt.Errorf("service.account.DeleteAccount: %w", service.ErrForbidden))

		req := withPrincipal(httptest.NewRequest(http.MethodDelete, "/members/"+other.String(), nil), bob)
		rr := httptest.NewRecorder()
		deleteRouter(h).ServeHTTP(rr, req)

		require.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		h, _ := newHandlers(t)

		req := httptest.NewRequest(http.MethodDelete, "/members/"+bob.ID.String(), nil)
		rr := httptest.NewRecorder()
		deleteRouter(h).ServeHTTP(rr, req.WithContext(context.Background()))

		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
