package models

import "github.com/google/uuid"

// Principal — аутентифицированная личность запроса или соединения.
type Principal struct {
	ID          uuid.UUID
	Subject     string
	DisplayName string
	Role        Role
}

// PrincipalFromUser строит Principal из записи пользователя.
func PrincipalFromUser(u User) Principal {
	return Principal{
		ID:          u.ID,
		Subject:     u.Email,
		DisplayName: u.Name,
		Role:        u.Role,
	}
}

// IsAdmin — удобный предикат для проверок доступа.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
