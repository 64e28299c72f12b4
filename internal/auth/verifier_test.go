package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Cantido/hematite/internal/apperror"
)

func signHMAC(t *testing.T, secret []byte, sub, aud string, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		Audience:  jwt.ClaimStrings{aud},
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return signed
}

func TestVerifyAcceptsValidHMACToken(t *testing.T) {
	secret := []byte("test-secret")
	v, err := NewVerifier(KeySource{HMACSecret: secret}, "hematite")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	tok := signHMAC(t, secret, "alice", "hematite", time.Now().Add(time.Hour))
	claims, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("Subject = %q, want alice", claims.Subject)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	v, err := NewVerifier(KeySource{HMACSecret: secret}, "hematite")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	tok := signHMAC(t, secret, "alice", "hematite", time.Now().Add(-time.Hour))
	_, err = v.Verify(tok)
	var ae *apperror.Error
	if !errors.As(err, &ae) || ae.Kind != apperror.Unauthenticated {
		t.Fatalf("err = %v, want Unauthenticated", err)
	}
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	secret := []byte("test-secret")
	v, err := NewVerifier(KeySource{HMACSecret: secret}, "hematite")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	tok := signHMAC(t, secret, "alice", "someone-else", time.Now().Add(time.Hour))
	_, err = v.Verify(tok)
	var ae *apperror.Error
	if !errors.As(err, &ae) || ae.Kind != apperror.Unauthenticated {
		t.Fatalf("err = %v, want Unauthenticated", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v, err := NewVerifier(KeySource{HMACSecret: []byte("right-secret")}, "hematite")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	tok := signHMAC(t, []byte("wrong-secret"), "alice", "hematite", time.Now().Add(time.Hour))
	_, err = v.Verify(tok)
	var ae *apperror.Error
	if !errors.As(err, &ae) || ae.Kind != apperror.Unauthenticated {
		t.Fatalf("err = %v, want Unauthenticated", err)
	}
}

func TestVerifyRejectsTokenMissingExpiry(t *testing.T) {
	secret := []byte("test-secret")
	v, err := NewVerifier(KeySource{HMACSecret: secret}, "hematite")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	claims := jwt.RegisteredClaims{Subject: "alice", Audience: jwt.ClaimStrings{"hematite"}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	_, err = v.Verify(signed)
	var ae *apperror.Error
	if !errors.As(err, &ae) || ae.Kind != apperror.Unauthenticated {
		t.Fatalf("err = %v, want Unauthenticated", err)
	}
}

func TestNewVerifierRequiresAKey(t *testing.T) {
	if _, err := NewVerifier(KeySource{}, "hematite"); err == nil {
		t.Fatalf("expected error when no key is configured")
	}
}
