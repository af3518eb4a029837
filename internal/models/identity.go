package models

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the resolved caller of an authenticated request. The auth
// service owns the underlying user record; this backend only ever sees the
// stable identifier and email extracted from a verified access token.
type Identity struct {
	UserID uuid.UUID `json:"id"`
	Email  string    `json:"email"`
}

// Session is the token bundle the auth service returns on login and refresh.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int       `json:"expires_in"`
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
}

// AuthUser is the auth-service user record referenced by registration.
type AuthUser struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
