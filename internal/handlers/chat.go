package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/confabhq/confab/internal/models"
	"github.com/confabhq/confab/internal/services"
)

type ChatHandler struct {
	chatService services.ChatServiceInterface
}

func NewChatHandler(chatService services.ChatServiceInterface) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type DirectConversationRequest struct {
	OtherUserID uuid.UUID `json:"other_user_id"`
}

type DirectConversationResponse struct {
	Conversation *models.Conversation `json:"conversation"`
	IsNew        bool                 `json:"is_new"`
}

type SendMessageRequest struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Content        string    `json:"content"`
}

type MessageResponse struct {
	Message *models.Message `json:"message"`
}

type MessageListResponse struct {
	Messages []models.Message `json:"messages"`
}

type ConversationListResponse struct {
	Conversations []models.Conversation `json:"conversations"`
}

type ParticipantListResponse struct {
	Participants []models.Participant `json:"participants"`
}

// OpenDirect returns the direct conversation with the other user, creating
// it when none exists yet. Repeat calls land on the same conversation, so
// the status code tells the client whether this call created it.
func (h *ChatHandler) OpenDirect(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req DirectConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.OtherUserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "Other user ID is required.")
		return
	}

	conversation, isNew, err := h.chatService.GetOrCreateDirect(r.Context(), user.UserID, req.OtherUserID)
	if errors.Is(err, services.ErrSelfConversation) {
		writeError(w, http.StatusBadRequest, "Can't open a conversation with yourself.")
		return
	}
	if errors.Is(err, services.ErrNotFriends) {
		writeError(w, http.StatusForbidden, "You must be friends to start a conversation.")
		return
	}
	if errors.Is(err, services.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "Profile not found.")
		return
	}
	if err != nil {
		log.Printf("Error opening direct conversation: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	writeJSON(w, status, DirectConversationResponse{Conversation: conversation, IsNew: isNew})
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ConversationID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "Conversation ID is required.")
		return
	}

	message, err := h.chatService.SendMessage(r.Context(), user.UserID, req.ConversationID, req.Content)
	if errors.Is(err, services.ErrEmptyMessage) {
		writeError(w, http.StatusBadRequest, "Message content must not be empty.")
		return
	}
	if errors.Is(err, services.ErrMessageTooLong) {
		writeError(w, http.StatusBadRequest, "Message content is too long.")
		return
	}
	if errors.Is(err, services.ErrConversationNotFound) {
		writeError(w, http.StatusNotFound, "Conversation not found.")
		return
	}
	if errors.Is(err, services.ErrNotParticipant) {
		writeError(w, http.StatusForbidden, "Not a member of this conversation.")
		return
	}
	if errors.Is(err, services.ErrNotFriends) {
		writeError(w, http.StatusForbidden, "You must be friends to send messages.")
		return
	}
	if err != nil {
		log.Printf("Error sending message: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: message})
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conversationID, err := uuid.Parse(r.PathValue("conversation_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	messages, err := h.chatService.ListMessages(r.Context(), user.UserID, conversationID)
	if errors.Is(err, services.ErrConversationNotFound) {
		writeError(w, http.StatusNotFound, "Conversation not found.")
		return
	}
	if errors.Is(err, services.ErrNotParticipant) {
		writeError(w, http.StatusForbidden, "Access denied.")
		return
	}
	if err != nil {
		log.Printf("Error listing messages: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, MessageListResponse{Messages: messages})
}

func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conversations, err := h.chatService.ListConversations(r.Context(), user.UserID)
	if err != nil {
		log.Printf("Error listing conversations: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ConversationListResponse{Conversations: conversations})
}

func (h *ChatHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conversationID, err := uuid.Parse(r.PathValue("conversation_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	participants, err := h.chatService.ListParticipants(r.Context(), user.UserID, conversationID)
	if errors.Is(err, services.ErrConversationNotFound) {
		writeError(w, http.StatusNotFound, "Conversation not found.")
		return
	}
	if errors.Is(err, services.ErrNotParticipant) {
		writeError(w, http.StatusForbidden, "Access denied.")
		return
	}
	if err != nil {
		log.Printf("Error listing participants: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ParticipantListResponse{Participants: participants})
}
