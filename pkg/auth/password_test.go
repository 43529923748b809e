package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "secret1" {
		t.Fatalf("hash must not equal the plaintext")
	}
	if !CheckPassword("secret1", hash) {
		t.Fatalf("expected matching password to verify")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected mismatching password to fail")
	}
}

func TestCheckPasswordEmptyStoredHash(t *testing.T) {
	if CheckPassword("anything", "") {
		t.Fatalf("empty stored hash must never verify")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("abc"); err == nil {
		t.Fatalf("expected short password to be rejected")
	}
	if err := ValidatePassword("longenough"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
