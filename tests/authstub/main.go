// Command authstub is a minimal stand-in for the hosted auth provider's
// REST API, for local development and integration tests. It keeps users
// and refresh tokens in memory and signs HS256 access tokens that the
// server's verifier accepts when AUTH_JWT_SECRET matches.
package main

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultAddr   = ":9999"
	defaultIssuer = "http://localhost:9999/auth/v1"
	defaultSecret = "super-secret-jwt-token-with-at-least-32-characters-long"

	tokenLifetime = time.Hour
)

type stubUser struct {
	ID       uuid.UUID
	Email    string
	Password string
}

type server struct {
	issuer string
	secret []byte

	mu            sync.Mutex
	usersByEmail  map[string]*stubUser
	usersByID     map[uuid.UUID]*stubUser
	refreshTokens map[string]uuid.UUID
	accessTokens  map[string]uuid.UUID
}

func main() {
	srv := newServer()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/signup", srv.handleSignUp)
	mux.HandleFunc("POST /auth/v1/token", srv.handleToken)
	mux.HandleFunc("POST /auth/v1/logout", srv.handleLogout)
	mux.HandleFunc("GET /auth/v1/admin/users/{id}", srv.handleAdminUser)
	mux.HandleFunc("POST /test/reset", srv.handleReset)

	addr := getEnv("AUTH_STUB_ADDR", defaultAddr)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	log.Printf("Auth stub listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func newServer() *server {
	return &server{
		issuer:        getEnv("AUTH_STUB_ISSUER", defaultIssuer),
		secret:        []byte(getEnv("AUTH_STUB_JWT_SECRET", defaultSecret)),
		usersByEmail:  map[string]*stubUser{},
		usersByID:     map[uuid.UUID]*stubUser{},
		refreshTokens: map[string]uuid.UUID{},
		accessTokens:  map[string]uuid.UUID{},
	}
}

type credentials struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
}

func (s *server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeAuthError(w, http.StatusBadRequest, "bad_json", "Could not parse request body")
		return
	}
	email := strings.TrimSpace(strings.ToLower(creds.Email))
	if email == "" || creds.Password == "" {
		writeAuthError(w, http.StatusBadRequest, "validation_failed", "Email and password are required")
		return
	}

	s.mu.Lock()
	if _, exists := s.usersByEmail[email]; exists {
		s.mu.Unlock()
		writeAuthError(w, http.StatusUnprocessableEntity, "user_already_exists", "User already registered")
		return
	}
	user := &stubUser{ID: uuid.New(), Email: email, Password: creds.Password}
	s.usersByEmail[email] = user
	s.usersByID[user.ID] = user
	s.mu.Unlock()

	// Autoconfirm: a signup immediately yields a usable session.
	s.writeSession(w, user)
}

func (s *server) handleToken(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeAuthError(w, http.StatusBadRequest, "bad_json", "Could not parse request body")
		return
	}

	switch r.URL.Query().Get("grant_type") {
	case "password":
		email := strings.TrimSpace(strings.ToLower(creds.Email))
		s.mu.Lock()
		user, ok := s.usersByEmail[email]
		s.mu.Unlock()
		if !ok || user.Password != creds.Password {
			writeAuthError(w, http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
			return
		}
		s.writeSession(w, user)

	case "refresh_token":
		s.mu.Lock()
		userID, ok := s.refreshTokens[creds.RefreshToken]
		if ok {
			// Rotation: each refresh token is single use.
			delete(s.refreshTokens, creds.RefreshToken)
		}
		user := s.usersByID[userID]
		s.mu.Unlock()
		if !ok || user == nil {
			writeAuthError(w, http.StatusBadRequest, "refresh_token_not_found", "Invalid Refresh Token: Refresh Token Not Found")
			return
		}
		s.writeSession(w, user)

	default:
		writeAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "Unsupported grant_type")
	}
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)

	s.mu.Lock()
	if userID, ok := s.accessTokens[token]; ok {
		delete(s.accessTokens, token)
		for rt, id := range s.refreshTokens {
			if id == userID {
				delete(s.refreshTokens, rt)
			}
		}
	}
	s.mu.Unlock()

	// Revoking an unknown token is not an error.
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleAdminUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeAuthError(w, http.StatusBadRequest, "validation_failed", "Invalid user id")
		return
	}

	s.mu.Lock()
	user, ok := s.usersByID[userID]
	s.mu.Unlock()
	if !ok {
		writeAuthError(w, http.StatusNotFound, "user_not_found", "User not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":    user.ID.String(),
		"email": user.Email,
	})
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.usersByEmail = map[string]*stubUser{}
	s.usersByID = map[uuid.UUID]*stubUser{}
	s.refreshTokens = map[string]uuid.UUID{}
	s.accessTokens = map[string]uuid.UUID{}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *server) writeSession(w http.ResponseWriter, user *stubUser) {
	accessToken, err := s.issueAccessToken(user)
	if err != nil {
		writeAuthError(w, http.StatusInternalServerError, "token_failed", "Failed to issue token")
		return
	}
	refreshToken, err := randomToken(16)
	if err != nil {
		writeAuthError(w, http.StatusInternalServerError, "token_failed", "Failed to issue token")
		return
	}

	s.mu.Lock()
	s.accessTokens[accessToken] = user.ID
	s.refreshTokens[refreshToken] = user.ID
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_type":    "bearer",
		"expires_in":    int(tokenLifetime.Seconds()),
		"user": map[string]any{
			"id":    user.ID.String(),
			"email": user.Email,
		},
	})
}

func (s *server) issueAccessToken(user *stubUser) (string, error) {
	now := time.Now()
	claims := map[string]any{
		"iss":   s.issuer,
		"sub":   user.ID.String(),
		"email": user.Email,
		"exp":   now.Add(tokenLifetime).Unix(),
		"iat":   now.Unix(),
	}
	header := map[string]any{
		"alg": "HS256",
		"typ": "JWT",
	}
	return signJWT(header, claims, s.secret)
}

func signJWT(header, claims map[string]any, secret []byte) (string, error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	encodedHeader := base64.RawURLEncoding.EncodeToString(headerJSON)
	encodedClaims := base64.RawURLEncoding.EncodeToString(claimsJSON)
	signingInput := encodedHeader + "." + encodedClaims

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(signingInput))
	encodedSig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return signingInput + "." + encodedSig, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

func randomToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func writeAuthError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"msg":        msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
