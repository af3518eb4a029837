package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/confabhq/confab/internal/models"
)

var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrAuthRejected        = errors.New("auth provider rejected request")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrAuthUserNotFound    = errors.New("auth user not found")
)

// AuthAPI is a client for the hosted auth provider's REST endpoints. The
// provider owns credentials and token issuance; this server never stores
// passwords or hashes.
type AuthAPI struct {
	baseURL    string
	anonKey    string
	serviceKey string
	httpClient *http.Client
}

func NewAuthAPI(baseURL, anonKey, serviceKey string) *AuthAPI {
	return &AuthAPI{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// signUpResponse also carries top level id/email because the provider
// returns a bare user object instead of a session when email confirmation
// is pending.
type signUpResponse struct {
	sessionResponse
	ID    string `json:"id"`
	Email string `json:"email"`
}

type authErrorBody struct {
	ErrorCode   string `json:"error_code"`
	Msg         string `json:"msg"`
	ErrorField  string `json:"error"`
	Description string `json:"error_description"`
	Message     string `json:"message"`
}

func (e authErrorBody) message() string {
	for _, m := range []string{e.Msg, e.Description, e.Message, e.ErrorField} {
		if m != "" {
			return m
		}
	}
	return "unknown error"
}

func parseAuthError(data []byte) authErrorBody {
	var body authErrorBody
	_ = json.Unmarshal(data, &body)
	return body
}

func (r sessionResponse) toSession() (*models.Session, error) {
	userID, err := uuid.Parse(r.User.ID)
	if err != nil {
		return nil, fmt.Errorf("parsing session user id: %w", err)
	}
	return &models.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresIn:    r.ExpiresIn,
		UserID:       userID,
		Email:        r.User.Email,
	}, nil
}

func (a *AuthAPI) do(ctx context.Context, method, path, apikey, bearer string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding auth request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("creating auth request: %w", err)
	}
	req.Header.Set("apikey", apikey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("calling auth provider: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("reading auth response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// SignUp registers email/password credentials with the provider. When the
// provider requires email confirmation the returned session carries the new
// user ID but no tokens.
func (a *AuthAPI) SignUp(ctx context.Context, email, password string) (*models.Session, error) {
	status, data, err := a.do(ctx, http.MethodPost, "/auth/v1/signup", a.anonKey, a.anonKey,
		map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		body := parseAuthError(data)
		if isEmailTaken(body) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("%w: %s", ErrAuthRejected, body.message())
	}

	var resp signUpResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decoding signup response: %w", err)
	}
	if resp.AccessToken != "" {
		return resp.sessionResponse.toSession()
	}

	userID, err := uuid.Parse(resp.ID)
	if err != nil {
		return nil, fmt.Errorf("parsing signup user id: %w", err)
	}
	return &models.Session{UserID: userID, Email: resp.Email}, nil
}

func isEmailTaken(body authErrorBody) bool {
	switch body.ErrorCode {
	case "user_already_exists", "email_exists":
		return true
	}
	return strings.Contains(strings.ToLower(body.message()), "already registered")
}

// SignInWithPassword exchanges email/password credentials for a session.
func (a *AuthAPI) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	status, data, err := a.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", a.anonKey, a.anonKey,
		map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, ErrInvalidCredentials
	}
	if status >= 400 {
		return nil, fmt.Errorf("%w: %s", ErrAuthRejected, parseAuthError(data).message())
	}

	var resp sessionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decoding session response: %w", err)
	}
	return resp.toSession()
}

// RefreshSession rotates a refresh token for a fresh session. The provider
// invalidates the old refresh token on success.
func (a *AuthAPI) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	status, data, err := a.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", a.anonKey, a.anonKey,
		map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}
	if status >= 400 && status < 500 {
		return nil, ErrInvalidRefreshToken
	}
	if status >= 400 {
		return nil, fmt.Errorf("%w: %s", ErrAuthRejected, parseAuthError(data).message())
	}

	var resp sessionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decoding session response: %w", err)
	}
	return resp.toSession()
}

// SignOut revokes the session behind accessToken with the provider.
func (a *AuthAPI) SignOut(ctx context.Context, accessToken string) error {
	status, data, err := a.do(ctx, http.MethodPost, "/auth/v1/logout", a.anonKey, accessToken, nil)
	if err != nil {
		return err
	}
	if status >= 400 {
		return fmt.Errorf("%w: %s", ErrAuthRejected, parseAuthError(data).message())
	}
	return nil
}

// GetUserEmail looks up a user's email through the provider's admin API.
func (a *AuthAPI) GetUserEmail(ctx context.Context, userID uuid.UUID) (string, error) {
	status, data, err := a.do(ctx, http.MethodGet, "/auth/v1/admin/users/"+userID.String(), a.serviceKey, a.serviceKey, nil)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", ErrAuthUserNotFound
	}
	if status >= 400 {
		return "", fmt.Errorf("%w: %s", ErrAuthRejected, parseAuthError(data).message())
	}

	var resp struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decoding admin user response: %w", err)
	}
	return resp.Email, nil
}
