package security

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndParseUserToken(t *testing.T) {
	raw, errIssue := IssueUserToken("secret", 42, "premium", time.Hour)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}

	claims, errParse := ParseUserToken("secret", raw)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.UserID != 42 {
		t.Fatalf("expected user id 42, got %d", claims.UserID)
	}
	if claims.Role != "premium" {
		t.Fatalf("expected role premium, got %q", claims.Role)
	}
}

func TestParseUserTokenRejectsWrongSecret(t *testing.T) {
	raw, errIssue := IssueUserToken("secret", 42, "standard", time.Hour)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}
	if _, errParse := ParseUserToken("other", raw); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}

func TestParseUserTokenRejectsExpired(t *testing.T) {
	raw, errIssue := IssueUserToken("secret", 42, "standard", -time.Minute)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}
	if _, errParse := ParseUserToken("secret", raw); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, errHash := HashPassword("hunter22")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	if !VerifyPassword(hash, "hunter22") {
		t.Fatalf("expected password to verify")
	}
	if VerifyPassword(hash, "wrong") {
		t.Fatalf("expected mismatch to fail")
	}
}
