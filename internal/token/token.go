// Package token mints and verifies the signed capability tokens that
// gate finished-montage delivery. A token carries exactly one claim,
// the artifact filename; possession of a valid token is the only
// authorization the delivery endpoints require.
//
// Tokens are minted in one place (the completion notifier) and verified
// in one place (the delivery handlers). By default they carry no expiry,
// matching the upstream behavior; a TTL can be opted into via
// configuration, in which case verification enforces it.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails verification:
// bad signature, wrong algorithm, tampered payload, or expired claim.
var ErrInvalidToken = errors.New("invalid token")

// Signer mints and verifies artifact tokens with a shared HMAC secret.
type Signer struct {
	secret []byte
	ttl    time.Duration // 0 disables expiry
}

type artifactClaims struct {
	Filename string `json:"filename"`
	jwt.RegisteredClaims
}

// NewSigner creates a Signer. ttl of zero mints tokens without expiry.
func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// Mint signs a token embedding the artifact filename.
func (s *Signer) Mint(filename string) (string, error) {
	claims := artifactClaims{
		Filename: filename,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(s.ttl))
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign artifact token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and returns the embedded filename.
// Verification never falls back to a default filename: any failure is
// ErrInvalidToken.
func (s *Signer) Verify(tokenStr string) (string, error) {
	var claims artifactClaims

	tok, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		// Pin the algorithm; accepting whatever the token names would
		// let an attacker downgrade to "none".
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return "", ErrInvalidToken
	}
	if claims.Filename == "" {
		return "", ErrInvalidToken
	}
	return claims.Filename, nil
}
