package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// EmailLookup resolves a user's email address from the auth service. The
// address lives there, not in profiles.
type EmailLookup interface {
	GetUserEmail(ctx context.Context, userID uuid.UUID) (string, error)
}

// FriendNotifier emails users about friend-request activity. It runs after
// the transaction that produced the event commits; failures are logged by the
// caller and never undo the event.
type FriendNotifier struct {
	db           DB
	emails       EmailLookup
	emailService EmailServiceInterface
	baseURL      string
}

func NewFriendNotifier(db DB, emails EmailLookup, emailService EmailServiceInterface, baseURL string) *FriendNotifier {
	return &FriendNotifier{
		db:           db,
		emails:       emails,
		emailService: emailService,
		baseURL:      baseURL,
	}
}

// NotifyRequestReceived emails the receiver that senderID wants to connect.
func (n *FriendNotifier) NotifyRequestReceived(ctx context.Context, senderID, receiverID, requestID uuid.UUID) error {
	senderUsername, err := n.username(ctx, senderID)
	if err != nil {
		return err
	}
	toEmail, err := n.emails.GetUserEmail(ctx, receiverID)
	if err != nil {
		return fmt.Errorf("lookup receiver email: %w", err)
	}

	subject, html, text := buildFriendRequestEmail(friendRequestEmailParams{
		SenderUsername: senderUsername,
		RequestID:      requestID,
		BaseURL:        n.baseURL,
	})
	return n.emailService.SendNotificationEmail(ctx, toEmail, subject, html, text)
}

// NotifyRequestAccepted emails the original sender that receiverID accepted.
func (n *FriendNotifier) NotifyRequestAccepted(ctx context.Context, senderID, receiverID uuid.UUID) error {
	accepterUsername, err := n.username(ctx, receiverID)
	if err != nil {
		return err
	}
	toEmail, err := n.emails.GetUserEmail(ctx, senderID)
	if err != nil {
		return fmt.Errorf("lookup sender email: %w", err)
	}

	subject, html, text := buildFriendAcceptedEmail(friendAcceptedEmailParams{
		AccepterUsername: accepterUsername,
		BaseURL:          n.baseURL,
	})
	return n.emailService.SendNotificationEmail(ctx, toEmail, subject, html, text)
}

func (n *FriendNotifier) username(ctx context.Context, userID uuid.UUID) (string, error) {
	var username string
	err := n.db.QueryRow(ctx, `SELECT username FROM profiles WHERE id = $1`, userID).Scan(&username)
	if err != nil {
		return "", fmt.Errorf("lookup username: %w", err)
	}
	return username, nil
}
