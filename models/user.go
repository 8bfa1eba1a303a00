package models

import "time"

type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleRider UserRole = "rider"
)

type User struct {
	ID           int       `json:"id"`
	Login        string    `json:"login"`
	Email        *string   `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Role возвращает роль пользователя для JWT claims.
func (u *User) Role() UserRole {
	if u.IsAdmin {
		return RoleAdmin
	}
	return RoleRider
}

type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}
