package handlers

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/videos", nil)
	rec := e.do(req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddlewareRejectsWrongSecret(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	claims := jwt.RegisteredClaims{
		Subject:  "1",
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/videos", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := e.do(req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddlewareRejectsNonNumericSubject(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	claims := jwt.RegisteredClaims{
		Subject:  "not-a-number",
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(e.cfg.SecretKey))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/videos", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := e.do(req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	userID := e.createUser(t)

	req := httptest.NewRequest(http.MethodGet, "/videos", nil)
	req.Header.Set("Authorization", e.bearer(t, userID))
	rec := e.do(req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestMintServiceTokenRoundTrip(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	tok, err := e.h.mintServiceToken(42)
	if err != nil {
		t.Fatalf("mintServiceToken() error = %v", err)
	}

	userID, err := e.h.parseIdentity(tok)
	if err != nil {
		t.Fatalf("parseIdentity() error = %v", err)
	}
	if userID != 42 {
		t.Errorf("parseIdentity() = %d, want 42", userID)
	}
	if strconv.FormatInt(userID, 10) != "42" {
		t.Errorf("subject round-trip mismatch")
	}
}
