package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/signage-core/internal/signage"
)

// Issuer is the iss claim of every display session token.
const Issuer = "signage-core"

// defaultSessionTTL applies when the caller passes a non-positive TTL.
const defaultSessionTTL = 12 * time.Hour

// DisplayClaims are carried by a display session token. Subject is the
// display ID.
type DisplayClaims struct {
	jwt.RegisteredClaims
	ClientID string `json:"cid"`
}

// DisplayID returns the display the token was issued to.
func (c *DisplayClaims) DisplayID() string {
	return c.Subject
}

// Session is a freshly issued display token.
type Session struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	DisplayID string    `json:"display_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueDisplayToken signs a session token for d. Inactive displays are
// refused with ErrDisplayInactive.
func IssueDisplayToken(d *signage.Display, secret string, ttl time.Duration) (*Session, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if !d.Active {
		return nil, ErrDisplayInactive
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	now := time.Now()
	expires := now.Add(ttl)
	claims := DisplayClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   d.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
		ClientID: d.ClientID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return nil, fmt.Errorf("signing display token: %w", err)
	}

	return &Session{
		Token:     signed,
		TokenType: "Bearer",
		DisplayID: d.ID,
		ExpiresAt: expires.UTC().Truncate(time.Second),
	}, nil
}

// ParseDisplayToken verifies signature, expiry and issuer and returns the
// claims. Expired tokens yield an error matching both ErrTokenInvalid and
// ErrTokenExpired.
func ParseDisplayToken(tokenString, secret string) (*DisplayClaims, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &DisplayClaims{}, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*DisplayClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}
