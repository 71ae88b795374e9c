package auth

import "testing"

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("secret-pass1")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "secret-pass1" {
		t.Fatal("hash must not equal the raw password")
	}
	if !CheckPassword(hash, "secret-pass1") {
		t.Error("expected matching password to verify")
	}
	if CheckPassword(hash, "wrong-pass1") {
		t.Error("expected mismatched password to fail")
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "abcdef12", false},
		{"too short", "ab1", true},
		{"no digits", "abcdefgh", true},
		{"no letters", "12345678", true},
		{"long valid", "waste-collection-2026", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidatePasswordStrength(tt.password)
			if tt.wantErr && verr == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && verr != nil {
				t.Errorf("unexpected validation error: %v", verr)
			}
		})
	}
}
