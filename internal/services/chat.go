package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/confabhq/confab/internal/models"
)

var (
	ErrSelfConversation     = errors.New("cannot open a conversation with yourself")
	ErrNotFriends           = errors.New("users are not friends")
	ErrNotParticipant       = errors.New("not a conversation participant")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyMessage         = errors.New("message content is empty")
	ErrMessageTooLong       = errors.New("message content too long")
)

// MaxMessageLength caps message content, counted in runes.
const MaxMessageLength = 4000

// ChatService owns conversations, membership and messages. Direct
// conversations are keyed by the canonical user pair so there is at most
// one per pair.
type ChatService struct {
	db DB
}

func NewChatService(db DB) *ChatService {
	return &ChatService{db: db}
}

// GetOrCreateDirect resolves the direct conversation for the pair, creating
// it if missing. The second return value reports whether this call created
// it. Losing a creation race is not an error; the loser's work is rolled
// back and the winner's conversation returned.
func (s *ChatService) GetOrCreateDirect(ctx context.Context, userID, otherID uuid.UUID) (*models.Conversation, bool, error) {
	if userID == otherID {
		return nil, false, ErrSelfConversation
	}

	friends, err := friendshipExists(ctx, s.db, userID, otherID)
	if err != nil {
		return nil, false, err
	}
	if !friends {
		return nil, false, ErrNotFriends
	}

	first, second := PairKey(userID, otherID)

	conversation, err := getDirectConversation(ctx, s.db, first, second)
	if err == nil {
		return conversation, false, nil
	}
	if !errors.Is(err, ErrConversationNotFound) {
		return nil, false, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin direct conversation transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := lockProfilePairForUpdate(ctx, tx, userID, otherID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrProfileNotFound
		}
		return nil, false, fmt.Errorf("lock profiles: %w", err)
	}

	conversation, err = getDirectConversation(ctx, tx, first, second)
	if err == nil {
		return conversation, false, nil
	}
	if !errors.Is(err, ErrConversationNotFound) {
		return nil, false, err
	}

	conversation = &models.Conversation{}
	err = tx.QueryRow(ctx,
		`INSERT INTO conversations (is_group)
		 VALUES (false)
		 RETURNING id, is_group, created_at`,
	).Scan(&conversation.ID, &conversation.IsGroup, &conversation.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("insert conversation: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO conversation_members (conversation_id, user_id)
		 VALUES ($1, $2), ($1, $3)`,
		conversation.ID, first, second,
	); err != nil {
		return nil, false, fmt.Errorf("insert conversation members: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO direct_conversations (conversation_id, user1_id, user2_id)
		 VALUES ($1, $2, $3)`,
		conversation.ID, first, second,
	); err != nil {
		if isUniqueViolation(err) {
			// Lost the race. Roll back the orphan conversation and
			// return the winner's row.
			_ = tx.Rollback(ctx)
			winner, lookupErr := getDirectConversation(ctx, s.db, first, second)
			if lookupErr != nil {
				return nil, false, fmt.Errorf("load direct conversation after conflict: %w", lookupErr)
			}
			return winner, false, nil
		}
		return nil, false, fmt.Errorf("insert direct conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit direct conversation: %w", err)
	}
	committed = true

	return conversation, true, nil
}

// SendMessage appends a message after checking the sender's membership. A
// direct conversation whose friendship was since removed rejects new
// messages even though membership still exists. The conversation foreign
// key is the backstop when the conversation disappears between check and
// insert.
func (s *ChatService) SendMessage(ctx context.Context, senderID, conversationID uuid.UUID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	if err := s.checkAccess(ctx, senderID, conversationID); err != nil {
		return nil, err
	}
	if err := s.checkDirectStillFriends(ctx, conversationID); err != nil {
		return nil, err
	}

	message := &models.Message{}
	err := s.db.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, sender_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, conversation_id, sender_id, content, created_at`,
		conversationID, senderID, content,
	).Scan(&message.ID, &message.ConversationID, &message.SenderID, &message.Content, &message.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return message, nil
}

// ListMessages returns the conversation's messages oldest first. Ties on
// created_at break on id so the order is stable.
func (s *ChatService) ListMessages(ctx context.Context, userID, conversationID uuid.UUID) ([]models.Message, error) {
	if err := s.checkAccess(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, conversation_id, sender_id, content, created_at
		 FROM messages
		 WHERE conversation_id = $1
		 ORDER BY created_at, id`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var message models.Message
		if err := rows.Scan(&message.ID, &message.ConversationID, &message.SenderID, &message.Content, &message.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}

func (s *ChatService) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.is_group, c.created_at
		 FROM conversations c
		 JOIN conversation_members m ON m.conversation_id = c.id
		 WHERE m.user_id = $1
		 ORDER BY c.created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var conversation models.Conversation
		if err := rows.Scan(&conversation.ID, &conversation.IsGroup, &conversation.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, conversation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read conversations: %w", err)
	}
	if conversations == nil {
		conversations = []models.Conversation{}
	}
	return conversations, nil
}

func (s *ChatService) ListParticipants(ctx context.Context, userID, conversationID uuid.UUID) ([]models.Participant, error) {
	if err := s.checkAccess(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT m.user_id, p.username
		 FROM conversation_members m
		 JOIN profiles p ON p.id = m.user_id
		 WHERE m.conversation_id = $1
		 ORDER BY p.username`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var participant models.Participant
		if err := rows.Scan(&participant.UserID, &participant.Username); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, participant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read participants: %w", err)
	}
	if participants == nil {
		participants = []models.Participant{}
	}
	return participants, nil
}

// checkDirectStillFriends rejects sends into a direct conversation whose
// pair is no longer friends. Group conversations pass through.
func (s *ChatService) checkDirectStillFriends(ctx context.Context, conversationID uuid.UUID) error {
	var first, second uuid.UUID
	err := s.db.QueryRow(ctx,
		`SELECT user1_id, user2_id FROM direct_conversations WHERE conversation_id = $1`,
		conversationID,
	).Scan(&first, &second)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check direct conversation: %w", err)
	}

	friends, err := friendshipExists(ctx, s.db, first, second)
	if err != nil {
		return err
	}
	if !friends {
		return ErrNotFriends
	}
	return nil
}

// checkAccess distinguishes a missing conversation from one the user is not
// a member of, so handlers can answer 404 versus 403.
func (s *ChatService) checkAccess(ctx context.Context, userID, conversationID uuid.UUID) error {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM conversations WHERE id = $1)`,
		conversationID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check conversation: %w", err)
	}
	if !exists {
		return ErrConversationNotFound
	}

	var member bool
	err = s.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM conversation_members
			WHERE conversation_id = $1 AND user_id = $2
		)`,
		conversationID, userID,
	).Scan(&member)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return ErrNotParticipant
	}
	return nil
}

func getDirectConversation(ctx context.Context, q DBConn, first, second uuid.UUID) (*models.Conversation, error) {
	conversation := &models.Conversation{}
	err := q.QueryRow(ctx,
		`SELECT c.id, c.is_group, c.created_at
		 FROM direct_conversations dc
		 JOIN conversations c ON c.id = dc.conversation_id
		 WHERE dc.user1_id = $1 AND dc.user2_id = $2`,
		first, second,
	).Scan(&conversation.ID, &conversation.IsGroup, &conversation.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get direct conversation: %w", err)
	}
	return conversation, nil
}
