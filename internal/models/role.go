package models

import (
	"fmt"
	"strings"
)

// Role — роль участника.
type Role string

const (
	RoleJobSeeker Role = "JOB_SEEKER"
	RoleIncumbent Role = "INCUMBENT"
	RoleMentor    Role = "MENTOR"
	RoleAdmin     Role = "ADMIN"
)

// rolePrefix — префикс ключа роли в claim'е токена.
const rolePrefix = "ROLE_"

// Key возвращает ключ роли в виде "ROLE_<NAME>" (значение claim'а "auth").
func (r Role) Key() string {
	return rolePrefix + string(r)
}

// Valid сообщает, известна ли роль.
func (r Role) Valid() bool {
	switch r {
	case RoleJobSeeker, RoleIncumbent, RoleMentor, RoleAdmin:
		return true
	}

	return false
}

// ParseRole принимает как "MENTOR", так и "ROLE_MENTOR" (регистр не важен).
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), rolePrefix))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}

	return r, nil
}
