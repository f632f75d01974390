package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

// TokenClaims is the subset of bearer token claims the portal reads.
type TokenClaims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

var ErrMalformedToken = errors.New("malformed token")

// DecodeTokenClaims reads the claims of a bearer token without verifying its
// signature. The portal never trusts these values for authorization; the
// backend remains the only verifier.
func DecodeTokenClaims(tokenString string) (TokenClaims, error) {
	parser := jwt.Parser{}
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return TokenClaims{}, ErrMalformedToken
	}

	var out TokenClaims
	for _, key := range []string{"sub", "id", "userId"} {
		if v, ok := claims[key].(string); ok && v != "" {
			out.Subject = v
			break
		}
	}
	if role, ok := claims["role"].(string); ok {
		out.Role = role
	}
	if exp, ok := claims["exp"].(float64); ok && exp > 0 {
		out.ExpiresAt = time.Unix(int64(exp), 0).UTC()
	}
	return out, nil
}

// HashToken computes a SHA-256 hash of the token string.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
