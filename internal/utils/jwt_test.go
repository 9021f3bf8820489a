package utils

import (
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

func TestAccessTokenRoundTrip(t *testing.T) {
    at, err := NewAccessToken("test-secret", 7, "VIEWER", 15)
    if err != nil {
        t.Fatalf("NewAccessToken: %v", err)
    }
    if time.Until(at.Exp) <= 0 {
        t.Fatalf("expected future expiry, got %v", at.Exp)
    }

    tok, err := jwt.Parse(at.Token, func(tk *jwt.Token) (interface{}, error) {
        return []byte("test-secret"), nil
    })
    if err != nil || !tok.Valid {
        t.Fatalf("parse: %v", err)
    }
    claims := tok.Claims.(jwt.MapClaims)
    if claims["sub"].(float64) != 7 {
        t.Fatalf("unexpected sub: %v", claims["sub"])
    }
    if claims["role"] != "VIEWER" {
        t.Fatalf("unexpected role: %v", claims["role"])
    }
}

func TestRefreshTokenHashing(t *testing.T) {
    rt, err := NewRefreshToken(30)
    if err != nil {
        t.Fatalf("NewRefreshToken: %v", err)
    }
    if len(rt.Raw) != 96 {
        t.Fatalf("expected 96 hex chars, got %d", len(rt.Raw))
    }
    h1 := HashRefreshRaw(rt.Raw)
    h2 := HashRefreshRaw(rt.Raw)
    if h1 != h2 {
        t.Fatal("hash must be deterministic")
    }
    if h1 == rt.Raw {
        t.Fatal("hash must differ from the raw token")
    }
}

func TestSessionTokensAreUnique(t *testing.T) {
    a, err := NewSessionToken()
    if err != nil {
        t.Fatalf("NewSessionToken: %v", err)
    }
    b, err := NewSessionToken()
    if err != nil {
        t.Fatalf("NewSessionToken: %v", err)
    }
    if len(a) != 64 || a == b {
        t.Fatalf("tokens must be 64 hex chars and unique: %q %q", a, b)
    }
}
