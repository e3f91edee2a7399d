package model

import "time"

// User is a registered account of the auth service.
type User struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	MobileNumber   string    `json:"mobile_number"`
	ServiceNumber  string    `json:"service_number,omitempty"`
	HashedPassword string    `json:"-"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// RefreshToken is the server-side copy of an issued refresh token.
type RefreshToken struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}
