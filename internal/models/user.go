package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is an account able to file or handle tickets.
type User struct {
	ID               int64     `json:"id" db:"id"`
	Username         string    `json:"username" db:"username"`
	PasswordHash     string    `json:"-" db:"password_hash"`
	Site             string    `json:"site" db:"site"`
	DefaultServiceID *int64    `json:"default_service_id" db:"default_service_id"`
	IsLock           bool      `json:"is_lock" db:"is_lock"`
	LastIP           *string   `json:"last_ip" db:"last_ip"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
	Permissions      []string  `json:"permissions,omitempty" db:"-"`
}

// SetPassword hashes and stores password with the given bcrypt cost.
func (u *User) SetPassword(password string, cost int) error {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashed)
	return nil
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// SessionUser is what the verify and login endpoints expose about the
// authenticated user.
type SessionUser struct {
	ID               int64    `json:"id"`
	Username         string   `json:"username"`
	Site             string   `json:"site"`
	DefaultServiceID *int64   `json:"default_service_id"`
	IsLock           bool     `json:"is_lock"`
	Permissions      []string `json:"permissions"`
}

// ToSession projects u into a SessionUser.
func (u *User) ToSession() *SessionUser {
	perms := u.Permissions
	if perms == nil {
		perms = []string{}
	}
	return &SessionUser{
		ID:               u.ID,
		Username:         u.Username,
		Site:             u.Site,
		DefaultServiceID: u.DefaultServiceID,
		IsLock:           u.IsLock,
		Permissions:      perms,
	}
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *SessionUser `json:"user"`
}
