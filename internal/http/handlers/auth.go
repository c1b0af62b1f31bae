package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/go-community-board/internal/auth"
	apierrors "github.com/pribylovaa/go-community-board/internal/http/errors"
	"github.com/pribylovaa/go-community-board/internal/models"
	"github.com/pribylovaa/go-community-board/internal/service"
)

func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var in SignupRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	role, err := models.ParseRole(in.Role)
	if err != nil {
		apierrors.WriteError(w, r, service.ErrInvalidRole)
		return
	}

	user, err := h.svc.Register(r.Context(), in.Email, in.Name, in.Password, role)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, memberFromUser(user))
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in LoginRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	sess, err := h.svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setRefreshCookie(w, sess.RefreshToken, sess.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken:     sess.AccessToken,
		AccessExpiresAt: sess.AccessExpiresAt.Unix(),
	})
}

// Logout требует аутентификации (RequireAuth на маршруте).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrUnauthenticated)
		return
	}

	if err := h.svc.Logout(r.Context(), p.Subject); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, OkResponse{Ok: true})
}

// Reissue читает refresh-токен из cookie. Cookie переписывается только
// при включённой ротации; при отказе не трогается.
func (h *Handlers) Reissue(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Reissue(r.Context(), refreshFromCookie(r))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if res.Rotated() {
		h.setRefreshCookie(w, res.RefreshToken, res.RefreshExpiresAt)
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken:     res.AccessToken,
		AccessExpiresAt: res.AccessExpiresAt.Unix(),
	})
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrUnauthenticated)
		return
	}

	writeJSON(w, http.StatusOK, memberFromPrincipal(p))
}

// DeleteMember удаляет участника; при удалении себя стирает refresh-cookie.
func (h *Handlers) DeleteMember(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrUnauthenticated)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "memberId"))
	if err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	self, err := h.svc.DeleteAccount(r.Context(), p, id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if self {
		h.clearRefreshCookie(w)
	}

	writeJSON(w, http.StatusOK, OkResponse{Ok: true})
}
