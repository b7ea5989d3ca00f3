// Package auth validates bearer tokens presented on join and refresh.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every validation failure: bad signature, malformed
// token, wrong algorithm, or expiry in the past.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the identity a validated token encodes.
type Claims struct {
	UserID    string
	ExpiresAt time.Time
}

// Validator turns a bearer token into claims or a failure. It is a pure
// function of the token and the clock.
type Validator interface {
	Validate(token string) (Claims, error)
}

// JWTValidator validates HMAC-signed JWTs.
type JWTValidator struct {
	secret []byte
}

func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret)}
}

// Validate parses and verifies the token, returning the subject and expiry.
func (v *JWTValidator) Validate(token string) (Claims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return Claims{}, ErrInvalidToken
	}
	expiry, err := parsed.Claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return Claims{}, ErrInvalidToken
	}

	return Claims{UserID: subject, ExpiresAt: expiry.Time}, nil
}

// Sign mints a token for the given user. Used by tests and local tooling; the
// production issuer lives outside this process.
func (v *JWTValidator) Sign(userID string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	return token.SignedString(v.secret)
}
