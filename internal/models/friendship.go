package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus enumerates the friend-request lifecycle. Pending is the only
// state persisted: Accepted, Declined and Cancelled are terminal transitions
// that delete the request row (acceptance replaces it with a Friendship).
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "Pending"
	RequestStatusAccepted  RequestStatus = "Accepted"
	RequestStatusDeclined  RequestStatus = "Declined"
	RequestStatusCancelled RequestStatus = "Cancelled"
)

type FriendRequest struct {
	ID         uuid.UUID     `json:"id"`
	SenderID   uuid.UUID     `json:"sender_id"`
	ReceiverID uuid.UUID     `json:"receiver_id"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Friendship is the symmetric relation created when a request is accepted.
// Rows are stored in canonical order: User1ID < User2ID.
type Friendship struct {
	ID        uuid.UUID `json:"id"`
	User1ID   uuid.UUID `json:"user1_id"`
	User2ID   uuid.UUID `json:"user2_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Friend is a friendship row resolved to the other party's profile.
type Friend struct {
	FriendID  uuid.UUID `json:"friend_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// IncomingRequest is a pending request addressed to the viewer.
type IncomingRequest struct {
	ID        uuid.UUID     `json:"id"`
	SenderID  uuid.UUID     `json:"sender_id"`
	Username  string        `json:"username"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// OutgoingRequest is a pending request the viewer has sent.
type OutgoingRequest struct {
	ID         uuid.UUID     `json:"id"`
	ReceiverID uuid.UUID     `json:"receiver_id"`
	Username   string        `json:"username"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}
