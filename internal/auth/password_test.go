package auth

import (
	"errors"
	"strings"
	"testing"
)

func mustHash(t *testing.T, password string) string {
	t.Helper()

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	return hash
}

func TestHashPassword(t *testing.T) {
	const password = "correct-horse-battery-staple"

	t.Run("round trip", func(t *testing.T) {
		hash := mustHash(t, password)

		ok, err := VerifyPassword(password, hash)
		if err != nil {
			t.Fatalf("VerifyPassword() error = %v", err)
		}
		if !ok {
			t.Error("correct password did not verify")
		}
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		hash := mustHash(t, password)

		ok, err := VerifyPassword("wrong-password", hash)
		if err != nil {
			t.Fatalf("VerifyPassword() error = %v", err)
		}
		if ok {
			t.Error("wrong password verified")
		}
	})

	t.Run("salts are unique", func(t *testing.T) {
		if mustHash(t, password) == mustHash(t, password) {
			t.Error("two hashes of the same password came out identical")
		}
	})
}

// TestHashPassword_PHCShape pins the on-disk format, since operators
// paste these strings into config files and other tools must parse them.
func TestHashPassword_PHCShape(t *testing.T) {
	hash := mustHash(t, "test")

	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("hash should start with $argon2id$, got %q", hash)
	}

	parts := strings.Split(hash, "$")
	if len(parts) != phcPartCount {
		t.Fatalf("PHC format should have %d $-delimited parts, got %d: %q", phcPartCount, len(parts), hash)
	}
	if parts[2] != "v=19" {
		t.Errorf("version field = %q, want v=19", parts[2])
	}
	if parts[3] != "m=65536,t=3,p=1" {
		t.Errorf("params field = %q, want m=65536,t=3,p=1", parts[3])
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"not PHC at all", "plaintext"},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=1$salt$hash"},
		{"too few parts", "$argon2id$v=19$m=65536,t=3,p=1"},
		{"bad salt encoding", "$argon2id$v=19$m=65536,t=3,p=1$!!!$hash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := VerifyPassword("password", tt.hash); err == nil {
				t.Error("VerifyPassword() accepted a malformed hash")
			}
		})
	}
}

func TestVerifyCredentials(t *testing.T) {
	hash := mustHash(t, "hunter2-but-longer")

	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{"valid", "admin", "hunter2-but-longer", false},
		{"wrong password", "admin", "wrong", true},
		{"wrong username", "root", "hunter2-but-longer", true},
		{"both wrong", "root", "wrong", true},
		{"empty attempt", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyCredentials(tt.username, tt.password, "admin", hash)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCredentials) {
					t.Errorf("VerifyCredentials() error = %v, want ErrInvalidCredentials", err)
				}
				return
			}
			if err != nil {
				t.Errorf("VerifyCredentials() error = %v, want nil", err)
			}
		})
	}
}

func TestVerifyCredentials_MalformedHash(t *testing.T) {
	// A broken configured hash must read as invalid credentials, not succeed.
	err := VerifyCredentials("admin", "password", "admin", "not-a-phc-hash")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("VerifyCredentials() error = %v, want ErrInvalidCredentials", err)
	}
}
