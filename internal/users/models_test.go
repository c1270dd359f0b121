package users

import "testing"

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	u := User{PasswordHash: hash}
	if hash == "correct-horse" {
		t.Fatalf("Expected hashed password")
	}
	if !u.CheckPassword("correct-horse") {
		t.Fatalf("Expected password to match")
	}
	if u.CheckPassword("wrong-horse") {
		t.Fatalf("Expected wrong password to be rejected")
	}
}
