package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/confabhq/confab/internal/logging"
	"github.com/confabhq/confab/internal/models"
)

var (
	ErrCannotFriendSelf   = errors.New("cannot friend yourself")
	ErrRequestExists      = errors.New("friend request already exists")
	ErrFriendshipExists   = errors.New("users are already friends")
	ErrRequestNotFound    = errors.New("friend request not found")
	ErrFriendshipNotFound = errors.New("friendship not found")
)

// FriendService owns the friend request lifecycle and the friendships
// relation. Requests only persist while pending; accept, decline and cancel
// all remove the row, and accept additionally writes the friendship.
type FriendService struct {
	db       DB
	notifier FriendNotifierInterface
}

func NewFriendService(db DB) *FriendService {
	return &FriendService{db: db}
}

// SetNotifier wires the email notifier. Left nil, request and accept events
// are silent.
func (s *FriendService) SetNotifier(notifier FriendNotifierInterface) {
	s.notifier = notifier
}

// SendRequest creates a pending request addressed by username. At most one
// pending request may exist per user pair, regardless of direction.
func (s *FriendService) SendRequest(ctx context.Context, senderID uuid.UUID, receiverUsername string) (*models.FriendRequest, error) {
	receiver, err := s.getProfileByUsername(ctx, receiverUsername)
	if err != nil {
		return nil, err
	}
	if receiver.ID == senderID {
		return nil, ErrCannotFriendSelf
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin send request transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := lockProfilePairForUpdate(ctx, tx, senderID, receiver.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("lock profiles: %w", err)
	}

	exists, err := friendshipExists(ctx, tx, senderID, receiver.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrFriendshipExists
	}

	var pending bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM friendships_requests
			WHERE ((sender_id = $1 AND receiver_id = $2)
			    OR (sender_id = $2 AND receiver_id = $1))
			  AND status = 'Pending'
		)`,
		senderID, receiver.ID,
	).Scan(&pending)
	if err != nil {
		return nil, fmt.Errorf("check pending request: %w", err)
	}
	if pending {
		return nil, ErrRequestExists
	}

	request := &models.FriendRequest{}
	err = tx.QueryRow(ctx,
		`INSERT INTO friendships_requests (sender_id, receiver_id, status)
		 VALUES ($1, $2, 'Pending')
		 RETURNING id, sender_id, receiver_id, status, created_at`,
		senderID, receiver.ID,
	).Scan(&request.ID, &request.SenderID, &request.ReceiverID, &request.Status, &request.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRequestExists
		}
		return nil, fmt.Errorf("insert friend request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit send request: %w", err)
	}
	committed = true

	if s.notifier != nil {
		if err := s.notifier.NotifyRequestReceived(ctx, senderID, receiver.ID, request.ID); err != nil {
			logging.Error("Failed to send friend request notification", map[string]interface{}{
				"error":       err.Error(),
				"sender_id":   senderID.String(),
				"receiver_id": receiver.ID.String(),
				"request_id":  request.ID.String(),
			})
		}
	}

	return request, nil
}

// AcceptRequest consumes the pending request from senderID and records the
// friendship. The friendships unique index is the last arbiter when two
// accepts race.
func (s *FriendService) AcceptRequest(ctx context.Context, receiverID, senderID uuid.UUID) (*models.Friendship, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin accept transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := lockProfilePairForUpdate(ctx, tx, receiverID, senderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("lock profiles: %w", err)
	}

	var requestID uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM friendships_requests
		 WHERE sender_id = $1 AND receiver_id = $2 AND status = 'Pending'
		 FOR UPDATE`,
		senderID, receiverID,
	).Scan(&requestID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load friend request: %w", err)
	}

	exists, err := friendshipExists(ctx, tx, receiverID, senderID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrFriendshipExists
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM friendships_requests WHERE id = $1`,
		requestID,
	); err != nil {
		return nil, fmt.Errorf("delete friend request: %w", err)
	}

	first, second := PairKey(receiverID, senderID)
	friendship := &models.Friendship{}
	err = tx.QueryRow(ctx,
		`INSERT INTO friendships (user1_id, user2_id)
		 VALUES ($1, $2)
		 RETURNING id, user1_id, user2_id, created_at`,
		first, second,
	).Scan(&friendship.ID, &friendship.User1ID, &friendship.User2ID, &friendship.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrFriendshipExists
		}
		return nil, fmt.Errorf("insert friendship: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit accept: %w", err)
	}
	committed = true

	if s.notifier != nil {
		if err := s.notifier.NotifyRequestAccepted(ctx, senderID, receiverID); err != nil {
			logging.Error("Failed to send request accepted notification", map[string]interface{}{
				"error":       err.Error(),
				"sender_id":   senderID.String(),
				"receiver_id": receiverID.String(),
			})
		}
	}

	return friendship, nil
}

// DeclineRequest removes the pending request from senderID to receiverID.
func (s *FriendService) DeclineRequest(ctx context.Context, receiverID, senderID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`DELETE FROM friendships_requests
		 WHERE sender_id = $1 AND receiver_id = $2 AND status = 'Pending'`,
		senderID, receiverID,
	)
	if err != nil {
		return fmt.Errorf("decline request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// CancelRequest removes the sender's own pending request to receiverID.
func (s *FriendService) CancelRequest(ctx context.Context, senderID, receiverID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`DELETE FROM friendships_requests
		 WHERE sender_id = $1 AND receiver_id = $2 AND status = 'Pending'`,
		senderID, receiverID,
	)
	if err != nil {
		return fmt.Errorf("cancel request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// RemoveFriend deletes the friendship between userID and otherID. Existing
// direct conversations and their messages are kept. Removing a pair that was
// never friends is an error; losing a race against a concurrent remove is not.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, otherID uuid.UUID) error {
	exists, err := friendshipExists(ctx, s.db, userID, otherID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrFriendshipNotFound
	}

	first, second := PairKey(userID, otherID)
	if _, err := s.db.Exec(ctx,
		`DELETE FROM friendships WHERE user1_id = $1 AND user2_id = $2`,
		first, second,
	); err != nil {
		return fmt.Errorf("remove friend: %w", err)
	}
	// Zero rows affected means a concurrent remove already won.
	return nil
}

// AreFriends reports whether a friendship row exists for the pair.
func (s *FriendService) AreFriends(ctx context.Context, userA, userB uuid.UUID) (bool, error) {
	return friendshipExists(ctx, s.db, userA, userB)
}

func (s *FriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error) {
	rows, err := s.db.Query(ctx,
		`SELECT p.id, p.username, f.created_at
		 FROM friendships f
		 JOIN profiles p ON p.id = CASE WHEN f.user1_id = $1 THEN f.user2_id ELSE f.user1_id END
		 WHERE f.user1_id = $1 OR f.user2_id = $1
		 ORDER BY f.created_at, p.username`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	var friends []models.Friend
	for rows.Next() {
		var friend models.Friend
		if err := rows.Scan(&friend.FriendID, &friend.Username, &friend.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		friends = append(friends, friend)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read friends: %w", err)
	}
	if friends == nil {
		friends = []models.Friend{}
	}
	return friends, nil
}

func (s *FriendService) ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.IncomingRequest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT fr.id, fr.sender_id, p.username, fr.created_at
		 FROM friendships_requests fr
		 JOIN profiles p ON p.id = fr.sender_id
		 WHERE fr.receiver_id = $1 AND fr.status = 'Pending'
		 ORDER BY fr.created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list incoming requests: %w", err)
	}
	defer rows.Close()

	var requests []models.IncomingRequest
	for rows.Next() {
		request := models.IncomingRequest{Status: models.RequestStatusPending}
		if err := rows.Scan(&request.ID, &request.SenderID, &request.Username, &request.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan incoming request: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read incoming requests: %w", err)
	}
	if requests == nil {
		requests = []models.IncomingRequest{}
	}
	return requests, nil
}

func (s *FriendService) ListOutgoing(ctx context.Context, userID uuid.UUID) ([]models.OutgoingRequest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT fr.id, fr.receiver_id, p.username, fr.created_at
		 FROM friendships_requests fr
		 JOIN profiles p ON p.id = fr.receiver_id
		 WHERE fr.sender_id = $1 AND fr.status = 'Pending'
		 ORDER BY fr.created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list outgoing requests: %w", err)
	}
	defer rows.Close()

	var requests []models.OutgoingRequest
	for rows.Next() {
		request := models.OutgoingRequest{Status: models.RequestStatusPending}
		if err := rows.Scan(&request.ID, &request.ReceiverID, &request.Username, &request.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outgoing request: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read outgoing requests: %w", err)
	}
	if requests == nil {
		requests = []models.OutgoingRequest{}
	}
	return requests, nil
}

func (s *FriendService) getProfileByUsername(ctx context.Context, username string) (*models.Profile, error) {
	profile := &models.Profile{}
	err := s.db.QueryRow(ctx,
		`SELECT id, username, created_at FROM profiles WHERE username = LOWER($1)`,
		username,
	).Scan(&profile.ID, &profile.Username, &profile.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile by username: %w", err)
	}
	return profile, nil
}

// friendshipExists checks the canonical friendships row for the pair. It
// takes DBConn so it works inside and outside transactions.
func friendshipExists(ctx context.Context, q DBConn, userA, userB uuid.UUID) (bool, error) {
	first, second := PairKey(userA, userB)
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM friendships WHERE user1_id = $1 AND user2_id = $2
		)`,
		first, second,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return exists, nil
}
