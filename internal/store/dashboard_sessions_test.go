package store

import (
	"testing"
	"time"
)

func TestDashboardSessions_IssueThenValid(t *testing.T) {
	s := NewDashboardSessions()
	token, err := s.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !s.Valid(token) {
		t.Fatal("expected freshly issued token to be valid")
	}
}

func TestDashboardSessions_InvalidTokenRejected(t *testing.T) {
	s := NewDashboardSessions()
	if s.Valid("not-a-real-token") {
		t.Fatal("expected unknown token to be invalid")
	}
	if s.Valid("") {
		t.Fatal("expected empty token to be invalid")
	}
}

func TestDashboardSessions_RevokeInvalidates(t *testing.T) {
	s := NewDashboardSessions()
	token, _ := s.Issue()
	s.Revoke(token)
	if s.Valid(token) {
		t.Fatal("expected revoked token to be invalid")
	}
}

func TestDashboardSessions_ExpiredTokenRejected(t *testing.T) {
	s := NewDashboardSessions()
	token, _ := s.Issue()
	s.sessions[token] = time.Now().Add(-time.Minute)
	if s.Valid(token) {
		t.Fatal("expected expired token to be invalid")
	}
}
