package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidToken = errors.New("auth: invalid token")

// TokenVerifier accepts a caller token when it matches the static token, the
// bcrypt hash, or is an HS256 JWT signed with the shared secret. A verifier
// with nothing configured accepts every request.
type TokenVerifier struct {
	static    []byte
	hash      []byte
	jwtSecret []byte
	now       func() time.Time
}

func NewTokenVerifier(static, bcryptHash, jwtSecret string) (*TokenVerifier, error) {
	v := &TokenVerifier{now: time.Now}
	if static != "" {
		v.static = []byte(static)
	}
	if bcryptHash != "" {
		if _, err := bcrypt.Cost([]byte(bcryptHash)); err != nil {
			return nil, fmt.Errorf("parse API token hash: %w", err)
		}
		v.hash = []byte(bcryptHash)
	}
	if jwtSecret != "" {
		v.jwtSecret = []byte(jwtSecret)
	}
	return v, nil
}

func (v *TokenVerifier) Enabled() bool {
	return v != nil && (v.static != nil || v.hash != nil || v.jwtSecret != nil)
}

func (v *TokenVerifier) Verify(token string) error {
	if !v.Enabled() {
		return nil
	}
	if token == "" {
		return ErrInvalidToken
	}

	if v.static != nil && subtle.ConstantTimeCompare([]byte(token), v.static) == 1 {
		return nil
	}
	if v.hash != nil && bcrypt.CompareHashAndPassword(v.hash, []byte(token)) == nil {
		return nil
	}
	if v.jwtSecret != nil && strings.Count(token, ".") == 2 {
		if _, err := v.parseJWT(token); err == nil {
			return nil
		}
	}
	return ErrInvalidToken
}

func (v *TokenVerifier) parseJWT(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// IssueToken signs a feed token valid for ttl. Used by operators to hand out
// expiring tokens instead of the static one.
func (v *TokenVerifier) IssueToken(subject string, ttl time.Duration) (string, error) {
	if v == nil || v.jwtSecret == nil {
		return "", errors.New("auth: JWT secret not configured")
	}
	now := v.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.jwtSecret)
}
