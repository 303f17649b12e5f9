package credentials

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wolfeidau/grandprix/internal/models"
)

// ErrMalformedToken is returned when a stored token cannot be decoded.
var ErrMalformedToken = errors.New("malformed token")

// Claims mirrors the claims the identity service puts in its session tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID   models.ID   `json:"user_id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
}

// ExpiresAtTime returns the expiry time, or the zero time when the token carries none.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Expired reports whether the token expiry has passed at the given time.
func (c *Claims) Expired(now time.Time) bool {
	exp := c.ExpiresAtTime()
	return !exp.IsZero() && now.After(exp)
}

// DecodeClaims reads the claims of an identity token without verifying its
// signature. The client never holds the signing secret; the result is for
// display only and must not be used for authorization decisions.
func DecodeClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return claims, nil
}
