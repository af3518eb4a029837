package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the 1:1 extension of an auth user owned by this backend.
// Usernames are stored lowercase and are unique case-insensitively.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type UserSearchResult struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}
