package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/confabhq/confab/internal/models"
	"github.com/confabhq/confab/internal/services"
)

const (
	refreshCookieName = "refresh_token"

	// The refresh token is only ever read by the access endpoint, so the
	// cookie is scoped to that path and never rides along on other requests.
	refreshCookiePath   = "/auth/access"
	refreshCookieMaxAge = 7 * 24 * 60 * 60
)

// RefreshCookie carries the deployment-dependent attributes of the refresh
// token cookie. Name, path and lifetime are fixed by the protocol above.
type RefreshCookie struct {
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
	Domain   string
}

type AuthHandler struct {
	authAPI  services.AuthAPIInterface
	profiles services.ProfileServiceInterface
	friends  services.FriendServiceInterface
	cookie   RefreshCookie
}

func NewAuthHandler(authAPI services.AuthAPIInterface, profiles services.ProfileServiceInterface, friends services.FriendServiceInterface, cookie RefreshCookie) *AuthHandler {
	return &AuthHandler{
		authAPI:  authAPI,
		profiles: profiles,
		friends:  friends,
		cookie:   cookie,
	}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type RegisterResponse struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int       `json:"expires_in"`
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
}

type AccessResponse struct {
	AccessToken string `json:"access_token"`
}

type MeAuth struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

type MeProfile struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type MeResponse struct {
	Auth             MeAuth                   `json:"auth"`
	Profile          MeProfile                `json:"profile"`
	Friends          []models.Friend          `json:"friends"`
	IncomingRequests []models.IncomingRequest `json:"incoming_requests"`
	OutgoingRequests []models.OutgoingRequest `json:"outgoing_requests"`
}

type LogoutResponse struct {
	LoggedOut bool `json:"logged_out"`
}

// Register creates the auth-provider credential and the matching profile
// row. The username is claimed after sign-up succeeds, so a lost race on the
// unique index surfaces as a conflict even though availability was checked
// first.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required.")
		return
	}
	if err := services.ValidateUsername(req.Username); err != nil {
		writeError(w, http.StatusBadRequest, "Username must be between 3 and 8 characters long and contain only letters, numbers, underscores, and dots.")
		return
	}
	if err := services.ValidatePassword(req.Password); err != nil {
		if errors.Is(err, services.ErrPasswordTooShort) {
			writeError(w, http.StatusBadRequest, "Password must be at least 8 characters long.")
			return
		}
		writeError(w, http.StatusBadRequest, "Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character.")
		return
	}

	if err := h.profiles.CheckUsernameAvailable(r.Context(), req.Username); err != nil {
		if errors.Is(err, services.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, "Username already taken.")
			return
		}
		log.Printf("Error checking username availability: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	session, err := h.authAPI.SignUp(r.Context(), req.Email, req.Password)
	if errors.Is(err, services.ErrEmailTaken) {
		writeError(w, http.StatusConflict, "Email already registered.")
		return
	}
	if errors.Is(err, services.ErrAuthRejected) {
		writeError(w, http.StatusConflict, "Registration rejected by the authentication service.")
		return
	}
	if err != nil {
		log.Printf("Error signing up user: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	profile, err := h.profiles.Create(r.Context(), session.UserID, req.Username)
	if errors.Is(err, services.ErrUsernameTaken) {
		writeError(w, http.StatusConflict, "Username already taken.")
		return
	}
	if err != nil {
		log.Printf("Error creating profile: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		ID:       profile.ID,
		Email:    session.Email,
		Username: profile.Username,
	})
}

// Login exchanges credentials for an access token. The refresh token never
// reaches the response body; it travels only in the scoped cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.authAPI.SignInWithPassword(r.Context(), req.Email, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password.")
		return
	}
	if err != nil {
		log.Printf("Error signing in user: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.setRefreshCookie(w, session.RefreshToken)
	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: session.AccessToken,
		ExpiresIn:   session.ExpiresIn,
		UserID:      session.UserID,
		Email:       session.Email,
	})
}

// Access mints a fresh access token from the refresh cookie and rotates the
// cookie. Any refresh failure invalidates the cookie so the client falls
// back to a full login instead of retrying a dead token.
func (h *AuthHandler) Access(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "No refresh token provided.")
		return
	}

	session, err := h.authAPI.RefreshSession(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, services.ErrInvalidRefreshToken) {
			log.Printf("Error refreshing session: %v", err)
		}
		h.clearRefreshCookie(w)
		writeError(w, http.StatusUnauthorized, "Refresh token invalid or expired. Please log in again.")
		return
	}

	h.setRefreshCookie(w, session.RefreshToken)
	writeJSON(w, http.StatusOK, AccessResponse{AccessToken: session.AccessToken})
}

// Me returns everything the client needs to render the signed-in state:
// identity, profile, friends and both directions of pending requests.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	profile, err := h.profiles.GetByID(r.Context(), user.UserID)
	if errors.Is(err, services.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "Profile not found.")
		return
	}
	if err != nil {
		log.Printf("Error loading profile: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	friends, err := h.friends.ListFriends(r.Context(), user.UserID)
	if err != nil {
		log.Printf("Error listing friends: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	incoming, err := h.friends.ListIncoming(r.Context(), user.UserID)
	if err != nil {
		log.Printf("Error listing incoming requests: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	outgoing, err := h.friends.ListOutgoing(r.Context(), user.UserID)
	if err != nil {
		log.Printf("Error listing outgoing requests: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{
		Auth:             MeAuth{ID: user.UserID, Email: user.Email},
		Profile:          MeProfile{Username: profile.Username, CreatedAt: profile.CreatedAt},
		Friends:          friends,
		IncomingRequests: incoming,
		OutgoingRequests: outgoing,
	})
}

// Logout revokes the upstream session when the client still holds a usable
// access token, and clears the refresh cookie either way.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		if err := h.authAPI.SignOut(r.Context(), token); err != nil {
			log.Printf("Error revoking upstream session: %v", err)
		}
	}

	h.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, LogoutResponse{LoggedOut: true})
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		Domain:   h.cookie.Domain,
		MaxAge:   refreshCookieMaxAge,
		HttpOnly: h.cookie.HTTPOnly,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		Domain:   h.cookie.Domain,
		MaxAge:   -1,
		HttpOnly: h.cookie.HTTPOnly,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
		Expires:  time.Unix(0, 0),
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
