package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testJWTSecret = "super-secret-signing-key"
const testIssuer = "https://xyz.supabase.co/auth/v1"

func mintHS256(t *testing.T, secret, issuer, subject, email string, expiresAt time.Time) string {
	t.Helper()
	claims := accessClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return raw
}

func TestHS256Verifier_Valid(t *testing.T) {
	userID := uuid.New()
	raw := mintHS256(t, testJWTSecret, testIssuer, userID.String(), "user@example.com", time.Now().Add(time.Hour))

	verifier := NewHS256Verifier(testJWTSecret, testIssuer)
	identity, err := verifier.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.UserID != userID {
		t.Fatalf("expected user %v, got %v", userID, identity.UserID)
	}
	if identity.Email != "user@example.com" {
		t.Fatalf("unexpected email: %s", identity.Email)
	}
}

func TestHS256Verifier_WrongSecret(t *testing.T) {
	raw := mintHS256(t, "other-secret", testIssuer, uuid.New().String(), "u@example.com", time.Now().Add(time.Hour))

	verifier := NewHS256Verifier(testJWTSecret, testIssuer)
	if _, err := verifier.Verify(context.Background(), raw); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestHS256Verifier_Expired(t *testing.T) {
	raw := mintHS256(t, testJWTSecret, testIssuer, uuid.New().String(), "u@example.com", time.Now().Add(-5*time.Minute))

	verifier := NewHS256Verifier(testJWTSecret, testIssuer)
	if _, err := verifier.Verify(context.Background(), raw); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestHS256Verifier_ExpiredWithinLeeway(t *testing.T) {
	raw := mintHS256(t, testJWTSecret, testIssuer, uuid.New().String(), "u@example.com", time.Now().Add(-30*time.Second))

	verifier := NewHS256Verifier(testJWTSecret, testIssuer)
	if _, err := verifier.Verify(context.Background(), raw); err != nil {
		t.Fatalf("expected clock skew tolerance, got %v", err)
	}
}

func TestHS256Verifier_WrongIssuer(t *testing.T) {
	raw := mintHS256(t, testJWTSecret, "https://evil.example/auth/v1", uuid.New().String(), "u@example.com", time.Now().Add(time.Hour))

	verifier := NewHS256Verifier(testJWTSecret, testIssuer)
	if _, err := verifier.Verify(context.Background(), raw); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestHS256Verifier_RejectsOtherAlgorithms(t *testing.T) {
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	verifier := NewHS256Verifier(testJWTSecret, testIssuer)
	if _, err := verifier.Verify(context.Background(), raw); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestHS256Verifier_SubjectNotUUID(t *testing.T) {
	raw := mintHS256(t, testJWTSecret, testIssuer, "not-a-uuid", "u@example.com", time.Now().Add(time.Hour))

	verifier := NewHS256Verifier(testJWTSecret, testIssuer)
	if _, err := verifier.Verify(context.Background(), raw); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestHS256Verifier_Garbage(t *testing.T) {
	verifier := NewHS256Verifier(testJWTSecret, testIssuer)
	if _, err := verifier.Verify(context.Background(), "not.a.token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

// fakeJWKSProvider serves the OIDC discovery document and a one-key JWKS for
// a generated RSA key.
type fakeJWKSProvider struct {
	server *httptest.Server
	key    *rsa.PrivateKey
}

func newFakeJWKSProvider(t *testing.T) *fakeJWKSProvider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	provider := &fakeJWKSProvider{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":   provider.server.URL,
			"jwks_uri": provider.server.URL + "/keys",
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"kid": "test-key",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	})
	provider.server = httptest.NewServer(mux)
	t.Cleanup(provider.server.Close)
	return provider
}

func (p *fakeJWKSProvider) mint(t *testing.T, subject, email string, expiresAt time.Time) string {
	t.Helper()
	claims := accessClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.server.URL,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key"
	raw, err := token.SignedString(p.key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return raw
}

func TestOIDCVerifier_Valid(t *testing.T) {
	provider := newFakeJWKSProvider(t)
	userID := uuid.New()
	raw := provider.mint(t, userID.String(), "user@example.com", time.Now().Add(time.Hour))

	verifier, err := NewOIDCVerifier(context.Background(), provider.server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	identity, err := verifier.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.UserID != userID || identity.Email != "user@example.com" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestOIDCVerifier_Expired(t *testing.T) {
	provider := newFakeJWKSProvider(t)
	raw := provider.mint(t, uuid.New().String(), "u@example.com", time.Now().Add(-10*time.Minute))

	verifier, err := NewOIDCVerifier(context.Background(), provider.server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := verifier.Verify(context.Background(), raw); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestOIDCVerifier_SubjectNotUUID(t *testing.T) {
	provider := newFakeJWKSProvider(t)
	raw := provider.mint(t, "service-account", "u@example.com", time.Now().Add(time.Hour))

	verifier, err := NewOIDCVerifier(context.Background(), provider.server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := verifier.Verify(context.Background(), raw); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestNewOIDCVerifier_DiscoveryError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := NewOIDCVerifier(context.Background(), server.URL); err == nil {
		t.Fatal("expected discovery error")
	} else if !strings.Contains(err.Error(), "discovering auth provider") {
		t.Fatalf("unexpected error: %v", err)
	}
}
