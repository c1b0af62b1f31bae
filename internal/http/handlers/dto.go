package handlers

import "github.com/pribylovaa/go-community-board/internal/models"

// Входные/выходные модели REST.

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse — тело ответа login/reissue. Refresh-токен в тело не попадает.
type TokenResponse struct {
	AccessToken     string `json:"access_token"`
	AccessExpiresAt int64  `json:"access_expires_at"` // Unix UTC
}

type MemberResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type OkResponse struct {
	Ok bool `json:"ok"`
}

func memberFromUser(u *models.User) MemberResponse {
	return MemberResponse{
		ID:    u.ID.String(),
		Email: u.Email,
		Name:  u.Name,
		Role:  string(u.Role),
	}
}

func memberFromPrincipal(p models.Principal) MemberResponse {
	return MemberResponse{
		ID:    p.ID.String(),
		Email: p.Subject,
		Name:  p.DisplayName,
		Role:  string(p.Role),
	}
}
