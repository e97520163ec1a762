package supabase

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultAudience = "authenticated"

type AccessTokenClaims struct {
	jwt.RegisteredClaims

	// Supabase Auth custom claims; we only rely on a few.
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

type VerifiedUser struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// VerifyAccessToken verifies a Supabase Auth access token (JWT, HS256) signed
// with the project JWT secret. The subject is the user id.
func VerifyAccessToken(tokenString, audience, secret string, now time.Time) (*VerifiedUser, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("missing token")
	}
	if secret == "" {
		return nil, fmt.Errorf("missing jwt secret")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	claims := &AccessTokenClaims{}
	tok, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if audience != "" && !slices.Contains([]string(claims.Audience), audience) {
		return nil, fmt.Errorf("audience mismatch")
	}

	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return nil, fmt.Errorf("missing subject in token")
	}

	return &VerifiedUser{
		UserID:    sub,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// MintAccessToken signs a token shaped like the ones Supabase Auth issues.
// Meant for local development and tests.
func MintAccessToken(userID, email, audience, secret string, now time.Time, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("missing jwt secret")
	}
	if audience == "" {
		audience = DefaultAudience
	}
	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
		Role:  DefaultAudience,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
