package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter2!")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "hunter2!" {
		t.Fatalf("hash must not equal plaintext")
	}
	if !CheckPassword("hunter2!", hash) {
		t.Fatalf("expected matching password to verify")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestCheckPasswordRejectsGarbageHash(t *testing.T) {
	if CheckPassword("anything", "not-a-bcrypt-hash") {
		t.Fatalf("expected malformed hash to fail")
	}
}
