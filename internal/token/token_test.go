package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestMintAndVerify(t *testing.T) {
	t.Parallel()

	s := NewSigner("test-secret", 0)

	tok, err := s.Mint("montage_video_1_123.mp4")
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	filename, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if filename != "montage_video_1_123.mp4" {
		t.Errorf("Verify() = %q, want %q", filename, "montage_video_1_123.mp4")
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	t.Parallel()

	s := NewSigner("test-secret", 0)
	tok, err := s.Mint("a.mp4")
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	// Flip a character in the payload segment.
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", tok)
	}
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	if _, err := s.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(tampered) error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewSigner("secret-one", 0).Mint("a.mp4")
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	if _, err := NewSigner("secret-two", 0).Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() with wrong secret error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsUnsignedToken(t *testing.T) {
	t.Parallel()

	// A token signed with "none" must never verify, regardless of claims.
	claims := artifactClaims{Filename: "a.mp4"}
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	unsigned, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	s := NewSigner("test-secret", 0)
	if _, err := s.Verify(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(unsigned) error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsMissingFilename(t *testing.T) {
	t.Parallel()

	s := NewSigner("test-secret", 0)

	// A structurally valid token without the filename claim is useless.
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		IssuedAt: jwt.NewNumericDate(time.Now()),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := s.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() without filename error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	t.Parallel()

	s := NewSigner("test-secret", 0)
	for _, input := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := s.Verify(input); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q) error = %v, want ErrInvalidToken", input, err)
		}
	}
}

func TestTokenWithoutTTLNeverExpires(t *testing.T) {
	t.Parallel()

	s := NewSigner("test-secret", 0)
	tok, err := s.Mint("a.mp4")
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	var claims artifactClaims
	if _, err := jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	}); err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if claims.ExpiresAt != nil {
		t.Errorf("token minted without TTL carries an expiry: %v", claims.ExpiresAt)
	}
}

func TestTokenWithTTLExpires(t *testing.T) {
	t.Parallel()

	s := NewSigner("test-secret", 250*time.Millisecond)
	tok, err := s.Mint("a.mp4")
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	if _, err := s.Verify(tok); err != nil {
		t.Fatalf("Verify() before expiry error = %v", err)
	}

	time.Sleep(600 * time.Millisecond)
	if _, err := s.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() after expiry error = %v, want ErrInvalidToken", err)
	}
}
