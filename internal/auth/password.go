package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id cost settings, per the OWASP 2025 guidance. Hashing runs at
// login only, never on a per-request path.
const (
	argonTime    = 3         // iterations
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 1         // parallelism
	argonKeyLen  = 32        // output hash length
	argonSaltLen = 16        // salt length
)

// phcPartCount is how many $-delimited fields a PHC string splits into:
// the leading empty field, algorithm, version, parameters, salt, hash.
const phcPartCount = 6

// HashPassword hashes a plaintext password with Argon2id into PHC
// string format: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
//
// The daemon never stores passwords itself; this exists so operators can
// generate the security.admin.password_hash config value.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword reports whether password matches an Argon2id PHC hash.
// The cost parameters come from the hash itself, so operators can
// re-hash with stronger settings without a daemon release.
func VerifyPassword(password, encodedHash string) (bool, error) {
	salt, hash, params, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.threads, uint32(len(hash))) //nolint:gosec // G115: hash length always fits uint32

	return subtle.ConstantTimeCompare(hash, candidate) == 1, nil
}

// VerifyCredentials checks a login attempt against the configured admin
// credential. It returns ErrInvalidCredentials for any mismatch without
// revealing which field failed; a wrong username still burns a hash
// verification so both failure paths take similar time.
func VerifyCredentials(username, password, wantUsername, passwordHash string) error {
	usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(wantUsername)) == 1

	passwordOK, err := VerifyPassword(password, passwordHash)
	if err != nil || !passwordOK || !usernameOK {
		return ErrInvalidCredentials
	}

	return nil
}

// phcParams are the cost settings recovered from a PHC hash string.
type phcParams struct {
	time    uint32
	memory  uint32
	threads uint8
}

// parsePHC splits a PHC string into salt, hash, and cost parameters.
func parsePHC(encoded string) (salt, hash []byte, params phcParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != phcPartCount {
		return nil, nil, params, fmt.Errorf("malformed PHC hash")
	}

	if parts[1] != "argon2id" {
		return nil, nil, params, fmt.Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return nil, nil, params, fmt.Errorf("parsing hash version: %w", err)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &params.threads); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return nil, nil, params, fmt.Errorf("parsing hash parameters: %w", err)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding salt: %w", err)
	}

	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding hash: %w", err)
	}

	return salt, hash, params, nil
}
