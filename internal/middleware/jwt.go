package middleware

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/agent0/runner/internal/domain"
)

// Claims are the fields of a user access token issued by the auth provider.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// JWTValidator checks HS256 user access tokens.
type JWTValidator struct {
	secret   []byte
	audience string
}

// NewJWTValidator creates a validator. An empty audience skips the aud check.
func NewJWTValidator(secret, audience string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret), audience: audience}
}

// Validate parses and verifies a token. Every failure wraps
// domain.ErrUnauthorized.
func (v *JWTValidator) Validate(tokenStr string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: jwt secret not configured", domain.ErrUnauthorized)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", domain.ErrUnauthorized)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", domain.ErrUnauthorized)
	}
	return claims, nil
}

// Sign issues a token for subject. It is used by tests and local tooling;
// production tokens come from the auth provider.
func (v *JWTValidator) Sign(claims Claims) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}
	if v.audience != "" && len(claims.Audience) == 0 {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
