package domain

import (
	"fmt"
	"time"
)

// Role роль пользователя
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid проверяет, что роль входит в закрытый набор
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole преобразует строку из хранилища или токена в Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// User - учетная запись пользователя
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Name         *string   `json:"name" db:"name"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// UserWithSubscription - пользователь вместе с его подпиской
type UserWithSubscription struct {
	User
	Subscription *Subscription `json:"subscription"`
}

// PublicUser - представление пользователя в ответах API
type PublicUser struct {
	ID           string        `json:"id"`
	Email        string        `json:"email"`
	Name         *string       `json:"name"`
	Role         Role          `json:"role"`
	CreatedAt    *time.Time    `json:"createdAt,omitempty"`
	Subscription *Subscription `json:"subscription"`
}

// Public формирует ответ без хеша пароля
func (u *UserWithSubscription) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		Subscription: u.Subscription,
	}
}

// Profile формирует ответ профиля (с датой создания)
func (u *UserWithSubscription) Profile() PublicUser {
	p := u.Public()
	createdAt := u.CreatedAt
	p.CreatedAt = &createdAt
	return p
}

// Pagination - параметры и итог постраничной выборки
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination считает количество страниц
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}
