package middleware

import (
	"testing"

	"github.com/Kubojah-Dan/CoinVista/config"
)

func TestGenerateAndParseToken(t *testing.T) {
	config.AppConfig = &config.Config{JWTSecret: "test-secret"}

	token, err := GenerateToken(42, "user@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("expected user id 42, got %d", claims.UserID)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("unexpected email %q", claims.Email)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	config.AppConfig = &config.Config{JWTSecret: "secret-a"}
	token, err := GenerateToken(1, "a@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	config.AppConfig = &config.Config{JWTSecret: "secret-b"}
	if _, err := ParseToken(token); err == nil {
		t.Fatal("expected token signed with a different secret to be rejected")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	config.AppConfig = &config.Config{JWTSecret: "test-secret"}
	if _, err := ParseToken("not-a-token"); err == nil {
		t.Fatal("expected malformed token to be rejected")
	}
}
