package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/timevault/internal/common"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")

	tok, err := GenerateToken("ops", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	got, err := GetOperatorFromToken(tok, secret)
	if err != nil {
		t.Fatalf("GetOperatorFromToken error: %v", err)
	}
	if got != "ops" {
		t.Fatalf("operator mismatch: got %q want %q", got, "ops")
	}
}

func TestGetOperatorFromToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := GenerateToken("ops", secret, -time.Second)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = GetOperatorFromToken(tok, secret)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGetOperatorFromToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("ops", []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	if _, err := GetOperatorFromToken(tok, []byte("wrong-secret")); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGetOperatorFromToken_RejectsOtherRolesAndAlgorithms(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "x", ExpiresAt: exp},
		Role:             "viewer",
	}).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := GetOperatorFromToken(noRole, secret); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong role, got %v", err)
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "x", ExpiresAt: exp},
		Role:             AdminRole,
	}).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := GetOperatorFromToken(hs512, secret); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for HS512, got %v", err)
	}
}

func TestEmptySecret(t *testing.T) {
	t.Parallel()

	if _, err := GenerateToken("ops", nil, time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := GetOperatorFromToken("x.y.z", nil); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
