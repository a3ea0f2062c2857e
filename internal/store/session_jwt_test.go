package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestJWTSessionStoreIssueAndResolve(t *testing.T) {
	s, err := NewJWTSessionStore("test-secret", time.Hour, NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	token, err := s.NewSession("42")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	uid, ok, err := s.GetUserIDByToken(token)
	if err != nil {
		t.Fatalf("resolve token: %v", err)
	}
	if !ok || uid != "42" {
		t.Fatalf("expected subject 42, got ok=%v uid=%q", ok, uid)
	}
}

func TestJWTSessionStoreRejectsGarbageAndWrongSecret(t *testing.T) {
	s, _ := NewJWTSessionStore("test-secret", time.Hour, nil)
	if _, ok, _ := s.GetUserIDByToken("not-a-jwt"); ok {
		t.Fatalf("expected garbage token to be rejected")
	}

	other, _ := NewJWTSessionStore("other-secret", time.Hour, nil)
	token, err := other.NewSession("42")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestJWTSessionStoreLogoutRevokes(t *testing.T) {
	s, _ := NewJWTSessionStore("test-secret", time.Hour, NewMemoryTokenRevoker())
	token, err := s.NewSession("7")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatalf("expected revoked token to be rejected")
	}
}

func TestJWTSessionStoreWithRedisRevoker(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	revoker := NewRedisTokenRevoker(redisSrv.Addr(), "")
	s, _ := NewJWTSessionStore("test-secret", time.Hour, revoker)

	token, err := s.NewSession("9")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(token); err != nil || !ok {
		t.Fatalf("expected token to resolve before revocation: ok=%v err=%v", ok, err)
	}
	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatalf("expected revoked token to be rejected")
	}
}
