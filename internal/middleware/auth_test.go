package middleware

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func signToken(t *testing.T, secret string, claims ActorClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestParseToken_Valid(t *testing.T) {
	signed := signToken(t, "secret", ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "user-1",
		Role:   "driver",
	})

	claims, err := ParseToken("secret", signed)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("expected user-1, got %s", claims.UserID)
	}
	if claims.Role != "driver" {
		t.Errorf("expected driver, got %s", claims.Role)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	signed := signToken(t, "secret", ActorClaims{UserID: "user-1"})

	if _, err := ParseToken("other-secret", signed); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestParseToken_Expired(t *testing.T) {
	signed := signToken(t, "secret", ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		UserID: "user-1",
	})

	if _, err := ParseToken("secret", signed); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestParseToken_MissingUserID(t *testing.T) {
	signed := signToken(t, "secret", ActorClaims{Role: "rider"})

	if _, err := ParseToken("secret", signed); err == nil {
		t.Error("expected error for token without user_id")
	}
}

func TestParseToken_Garbage(t *testing.T) {
	if _, err := ParseToken("secret", "not-a-token"); err == nil {
		t.Error("expected error for malformed token")
	}
}
