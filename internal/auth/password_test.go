package auth

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("verifier must not equal plaintext")
	}
	if !VerifyPassword(hash, "hunter2") {
		t.Fatal("expected correct password to verify")
	}
	if VerifyPassword(hash, "wrong") {
		t.Fatal("expected wrong password to fail verification")
	}
}

func TestNewTokenLength(t *testing.T) {
	tok, err := NewToken(4)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if len(tok) != 8 {
		t.Fatalf("expected 8 hex chars, got %q (%d)", tok, len(tok))
	}
}

func TestNewTokenUnique(t *testing.T) {
	a, _ := NewToken(4)
	b, _ := NewToken(4)
	if a == b {
		t.Fatal("expected distinct tokens across calls")
	}
}
