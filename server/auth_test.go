package server

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuerWithTemporaryKey()
	if err != nil {
		t.Fatal(err)
	}
	snapshot := map[string]string{
		"session_id":  "STU4ZDVFQkE3",
		"auth_token":  "QUJDREVGMTIz",
		"login_time":  time.Now().UTC().Format(time.RFC3339),
		"operator_id": "L12345",
		"domain_code": "15",
	}
	token, err := issuer.IssueToken(snapshot, time.Now().Add(8*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := issuer.ParseToken(token)
	if err != nil {
		t.Fatalf("could not parse issued token: %s", err)
	}
	for k, v := range snapshot {
		if parsed[k] != v {
			t.Errorf("%s: got %q, want %q", k, parsed[k], v)
		}
	}
	// the Bearer scheme is accepted too
	if _, err := issuer.ParseToken("Bearer " + token); err != nil {
		t.Errorf("bearer form rejected: %s", err)
	}
}

func TestParseTokenRejections(t *testing.T) {
	issuer, err := NewTokenIssuerWithTemporaryKey()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := issuer.ParseToken(""); err != ErrInvalidToken {
		t.Errorf("empty token: got %v", err)
	}
	if _, err := issuer.ParseToken("Bearer not.a.token"); err != ErrInvalidToken {
		t.Errorf("garbage token: got %v", err)
	}

	// a token signed by a different key must not verify
	other, err := NewTokenIssuerWithTemporaryKey()
	if err != nil {
		t.Fatal(err)
	}
	token, err := other.IssueToken(map[string]string{"session_id": "x"}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := issuer.ParseToken(token); err != ErrInvalidToken {
		t.Errorf("foreign token: got %v", err)
	}
}

func TestParseExpiredToken(t *testing.T) {
	issuer, err := NewTokenIssuerWithTemporaryKey()
	if err != nil {
		t.Fatal(err)
	}
	token, err := issuer.IssueToken(map[string]string{"session_id": "x"}, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := issuer.ParseToken(token); err != ErrInvalidToken {
		t.Errorf("expired token: got %v", err)
	}
}
