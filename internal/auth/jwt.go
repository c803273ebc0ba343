// Package auth implements the credential half of the Request Gate (§4.7):
// JWT issuance/validation matching the envelope in §6, and Argon2id
// password hashing.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nocodo/manager/pkg/models"
)

// TokenTTL is the fixed lifetime of an issued token: exp - iat = 86400
// seconds, per §6.
const TokenTTL = 24 * time.Hour

// ErrInvalidToken is returned for any malformed, unsigned, or expired
// bearer token.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims is the JWT payload described in §6: subject is the user id,
// username and an optional SSH host-key fingerprint identify the caller,
// iat/exp carry the fixed 24h lifetime.
type Claims struct {
	Username       string `json:"username"`
	SSHFingerprint string `json:"ssh_fingerprint,omitempty"`
	jwt.RegisteredClaims
}

// JWTService issues and validates bearer tokens against a single HMAC
// secret, per §4.7.
type JWTService struct {
	secret []byte
}

// NewJWTService builds a JWTService over secret.
func NewJWTService(secret string) *JWTService {
	return &JWTService{secret: []byte(secret)}
}

// Generate issues a token for user with iat=now, exp=now+TokenTTL.
func (s *JWTService) Generate(user *models.User) (string, error) {
	return s.generate(user, "")
}

// GenerateWithFingerprint issues a token that additionally binds an SSH
// host-key fingerprint, used when a session was established over an SSH
// tunnel (§4.5).
func (s *JWTService) GenerateWithFingerprint(user *models.User, fingerprint string) (string, error) {
	return s.generate(user, fingerprint)
}

func (s *JWTService) generate(user *models.User, fingerprint string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username:       user.Username,
		SSHFingerprint: fingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Validate checks token's signature and expiry and returns its claims.
// It does not look up the user in a store — the caller (the Request
// Gate) resolves Claims.Subject to a models.User.
func (s *JWTService) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
