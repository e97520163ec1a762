package supabase

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerifyAccessToken_RoundTrip(t *testing.T) {
	secret := "test_secret"
	now := time.Unix(1700000000, 0)

	s, err := MintAccessToken("user-123", "alice@example.com", "", secret, now, 10*time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	got, err := VerifyAccessToken(s, DefaultAudience, secret, now)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.UserID != "user-123" || got.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestVerifyAccessToken_Rejects(t *testing.T) {
	secret := "test_secret"
	now := time.Unix(1700000000, 0)

	valid, err := MintAccessToken("user-123", "", "", secret, now, time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{DefaultAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	cases := []struct {
		name     string
		token    string
		audience string
		secret   string
		now      time.Time
	}{
		{"empty", "", DefaultAudience, secret, now},
		{"wrong secret", valid, DefaultAudience, "other", now},
		{"expired", valid, DefaultAudience, secret, now.Add(2 * time.Minute)},
		{"audience", valid, "service_role", secret, now},
		{"no subject", noSubject, DefaultAudience, secret, now},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := VerifyAccessToken(tc.token, tc.audience, tc.secret, tc.now); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
