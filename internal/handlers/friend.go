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

type FriendHandler struct {
	friendService  services.FriendServiceInterface
	profileService services.ProfileServiceInterface
}

func NewFriendHandler(friendService services.FriendServiceInterface, profileService services.ProfileServiceInterface) *FriendHandler {
	return &FriendHandler{
		friendService:  friendService,
		profileService: profileService,
	}
}

type UserSearchResponse struct {
	Usernames []models.UserSearchResult `json:"usernames"`
}

type SendFriendRequestRequest struct {
	ReceiverUsername string `json:"receiver_username"`
}

type FriendRequestResponse struct {
	Request *models.FriendRequest `json:"request"`
}

type AcceptFriendRequestRequest struct {
	SenderID uuid.UUID `json:"sender_id"`
}

type FriendshipResponse struct {
	Friendship *models.Friendship `json:"friendship"`
}

type FriendMessageResponse struct {
	Message string `json:"message"`
}

// Search finds usernames starting with the given prefix. The caller shows up
// in their own results; the client filters that out if it wants to.
func (h *FriendHandler) Search(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	results, err := h.profileService.Search(r.Context(), r.PathValue("prefix"))
	if errors.Is(err, services.ErrSearchTermTooShort) {
		writeError(w, http.StatusBadRequest, "Search term must be at least 3 characters.")
		return
	}
	if errors.Is(err, services.ErrNoMatches) {
		writeError(w, http.StatusNotFound, "No matching usernames.")
		return
	}
	if err != nil {
		log.Printf("Error searching usernames: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, UserSearchResponse{Usernames: results})
}

func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SendFriendRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	request, err := h.friendService.SendRequest(r.Context(), user.UserID, req.ReceiverUsername)
	if errors.Is(err, services.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "No matching username")
		return
	}
	if errors.Is(err, services.ErrCannotFriendSelf) {
		writeError(w, http.StatusMethodNotAllowed, "Can't send friend request to self.")
		return
	}
	if errors.Is(err, services.ErrRequestExists) {
		writeError(w, http.StatusConflict, "Friend request already pending.")
		return
	}
	if errors.Is(err, services.ErrFriendshipExists) {
		writeError(w, http.StatusConflict, "Already friends.")
		return
	}
	if err != nil {
		log.Printf("Error sending friend request: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, FriendRequestResponse{Request: request})
}

func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req AcceptFriendRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SenderID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "Sender ID is required.")
		return
	}

	friendship, err := h.friendService.AcceptRequest(r.Context(), user.UserID, req.SenderID)
	if errors.Is(err, services.ErrRequestNotFound) {
		writeError(w, http.StatusNotFound, "Friend request not found.")
		return
	}
	if errors.Is(err, services.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "Profile not found.")
		return
	}
	if errors.Is(err, services.ErrFriendshipExists) {
		writeError(w, http.StatusConflict, "Already friends.")
		return
	}
	if err != nil {
		log.Printf("Error accepting friend request: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, FriendshipResponse{Friendship: friendship})
}

func (h *FriendHandler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	senderID, err := uuid.Parse(r.PathValue("sender_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sender ID")
		return
	}

	err = h.friendService.DeclineRequest(r.Context(), user.UserID, senderID)
	if errors.Is(err, services.ErrRequestNotFound) {
		writeError(w, http.StatusNotFound, "Friend request not found.")
		return
	}
	if err != nil {
		log.Printf("Error declining friend request: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, FriendMessageResponse{Message: "Friend request declined"})
}

func (h *FriendHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	receiverID, err := uuid.Parse(r.PathValue("receiver_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid receiver ID")
		return
	}

	err = h.friendService.CancelRequest(r.Context(), user.UserID, receiverID)
	if errors.Is(err, services.ErrRequestNotFound) {
		writeError(w, http.StatusNotFound, "Friend request not found.")
		return
	}
	if err != nil {
		log.Printf("Error cancelling friend request: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, FriendMessageResponse{Message: "Friend request cancelled"})
}

func (h *FriendHandler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	otherID, err := uuid.Parse(r.PathValue("other_user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	err = h.friendService.RemoveFriend(r.Context(), user.UserID, otherID)
	if errors.Is(err, services.ErrFriendshipNotFound) {
		writeError(w, http.StatusNotFound, "Friendship not found.")
		return
	}
	if err != nil {
		log.Printf("Error removing friend: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, FriendMessageResponse{Message: "Friend removed"})
}
