package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenIssuerIssuesAccessTokens(t *testing.T) {
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        "kindled-auth",
		Audience:      "kindled-api",
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	tokenString, expiresIn, err := issuer.IssueToken(context.Background(), "user-123", "lisa")
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}

	if expiresIn != int64((24 * time.Hour).Seconds()) {
		t.Fatalf("expected default 24h expiry, got %d seconds", expiresIn)
	}

	parser := jwt.Parser{}
	claims := &accessClaims{}

	_, err = parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("super-secret"), nil
	})
	if err != nil {
		t.Fatalf("failed to parse generated token: %v", err)
	}

	if claims.Subject != "user-123" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.Username != "lisa" {
		t.Fatalf("unexpected username claim %s", claims.Username)
	}
	if claims.Issuer != "kindled-auth" {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if len(claims.Audience) == 0 || claims.Audience[0] != "kindled-api" {
		t.Fatalf("unexpected audience %#v", claims.Audience)
	}
}

func TestNewTokenIssuerRejectsMissingSecret(t *testing.T) {
	_, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: nil,
		Issuer:        "kindled-auth",
		Audience:      "kindled-api",
	})
	if err == nil {
		t.Fatalf("expected constructor error for missing secret")
	}
}

func TestNewTokenIssuerRequiresIssuerAndAudience(t *testing.T) {
	_, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		Issuer:        "",
		Audience:      "kindled-api",
	})
	if err == nil {
		t.Fatalf("expected error for missing issuer")
	}

	_, err = NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		Issuer:        "kindled-auth",
		Audience:      " ",
	})
	if err == nil {
		t.Fatalf("expected error for missing audience")
	}
}

func TestTokenIssuerRejectsEmptySubject(t *testing.T) {
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		Issuer:        "kindled-auth",
		Audience:      "kindled-api",
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	if _, _, err := issuer.IssueToken(context.Background(), "  ", "lisa"); err == nil {
		t.Fatalf("expected error for empty subject")
	}
}

func TestTokenIssuerHonorsConfiguredTTL(t *testing.T) {
	issuedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		Issuer:        "kindled-auth",
		Audience:      "kindled-api",
		TokenTTL:      time.Hour,
		Clock:         func() time.Time { return issuedAt },
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	tokenString, expiresIn, err := issuer.IssueToken(context.Background(), "user-1", "lisa")
	if err != nil {
		t.Fatalf("unexpected issuance error: %v", err)
	}
	if expiresIn != 3600 {
		t.Fatalf("expected 3600 expiry seconds, got %d", expiresIn)
	}

	claims := &accessClaims{}
	parser := jwt.NewParser(jwt.WithTimeFunc(func() time.Time { return issuedAt }))
	if _, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	}); err != nil {
		t.Fatalf("failed to parse generated token: %v", err)
	}
	if !claims.ExpiresAt.Time.Equal(issuedAt.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", claims.ExpiresAt.Time)
	}
}
