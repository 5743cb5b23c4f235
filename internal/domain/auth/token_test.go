package auth

import (
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("super-secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	if err := CheckPassword(hash, "super-secret"); err != nil {
		t.Fatalf("expected password to match, got %v", err)
	}

	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	secret := "test-secret"
	claims := Claims{UserID: "u1", FirmID: "f1", RoleID: "r1", RoleName: RoleAccountant, SessionID: "s1"}

	token, err := GenerateToken(secret, claims, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	parsed, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if parsed.UserID != claims.UserID || parsed.FirmID != claims.FirmID || parsed.RoleID != claims.RoleID || parsed.RoleName != claims.RoleName || parsed.SessionID != claims.SessionID {
		t.Fatalf("claims mismatch: %+v", parsed)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret-a", Claims{UserID: "u1", FirmID: "f1"}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret-b", token); err == nil {
		t.Fatal("expected parse error with wrong secret")
	}
}

func TestUserContextScope(t *testing.T) {
	firmUser := UserContext{UserID: "u1", FirmID: "f1"}
	scope := firmUser.Scope()
	if scope.FirmID != "f1" || scope.LawyerID != "" {
		t.Fatalf("unexpected firm scope: %+v", scope)
	}

	lawyerUser := UserContext{UserID: "u2", LawyerID: "l1"}
	scope = lawyerUser.Scope()
	if scope.LawyerID != "l1" || scope.FirmID != "" {
		t.Fatalf("unexpected lawyer scope: %+v", scope)
	}
}
