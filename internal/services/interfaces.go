package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/confabhq/confab/internal/models"
)

// AuthAPIInterface is the auth-provider surface handlers depend on.
type AuthAPIInterface interface {
	SignUp(ctx context.Context, email, password string) (*models.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUserEmail(ctx context.Context, userID uuid.UUID) (string, error)
}

// ProfileServiceInterface defines profile operations used by handlers.
type ProfileServiceInterface interface {
	CheckUsernameAvailable(ctx context.Context, username string) error
	Create(ctx context.Context, userID uuid.UUID, username string) (*models.Profile, error)
	GetByID(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	GetByUsername(ctx context.Context, username string) (*models.Profile, error)
	Search(ctx context.Context, term string) ([]models.UserSearchResult, error)
}

// FriendServiceInterface defines friend-request and friendship operations
// used by handlers.
type FriendServiceInterface interface {
	SendRequest(ctx context.Context, senderID uuid.UUID, receiverUsername string) (*models.FriendRequest, error)
	AcceptRequest(ctx context.Context, receiverID, senderID uuid.UUID) (*models.Friendship, error)
	DeclineRequest(ctx context.Context, receiverID, senderID uuid.UUID) error
	CancelRequest(ctx context.Context, senderID, receiverID uuid.UUID) error
	RemoveFriend(ctx context.Context, userID, otherID uuid.UUID) error
	ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error)
	ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.IncomingRequest, error)
	ListOutgoing(ctx context.Context, userID uuid.UUID) ([]models.OutgoingRequest, error)
}

// ChatServiceInterface defines conversation and message operations used by
// handlers.
type ChatServiceInterface interface {
	GetOrCreateDirect(ctx context.Context, userID, otherID uuid.UUID) (*models.Conversation, bool, error)
	SendMessage(ctx context.Context, senderID, conversationID uuid.UUID, content string) (*models.Message, error)
	ListMessages(ctx context.Context, userID, conversationID uuid.UUID) ([]models.Message, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	ListParticipants(ctx context.Context, userID, conversationID uuid.UUID) ([]models.Participant, error)
}

// FriendNotifierInterface receives friend events after the transaction that
// produced them commits. Implementations must not block on slow providers
// longer than the request deadline allows.
type FriendNotifierInterface interface {
	NotifyRequestReceived(ctx context.Context, senderID, receiverID, requestID uuid.UUID) error
	NotifyRequestAccepted(ctx context.Context, senderID, receiverID uuid.UUID) error
}
