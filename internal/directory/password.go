package directory

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	argonMemory      = 64 * 1024
	argonIterations  = 2
	argonParallelism = 1
	argonKeyLength   = 32
	argonSaltLength  = 16
)

var errBadHash = errors.New("directory: malformed password hash")

// HashPassword hashes a plaintext password using argon2id.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("directory: password is empty")
	}
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory,
		argonIterations,
		argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword compares a plaintext password against a stored argon2id
// hash in constant time.
func VerifyPassword(encoded, password string) error {
	var (
		memory, iterations int
		parallelism        int
		saltB64, hashB64   string
	)
	n, err := fmt.Sscanf(encoded, "$argon2id$v=19$m=%d,t=%d,p=%d$%s",
		&memory, &iterations, &parallelism, &saltB64)
	if err != nil || n != 4 {
		return errBadHash
	}
	// The final scan target holds "salt$hash"; split it apart.
	for i, c := range saltB64 {
		if c == '$' {
			hashB64 = saltB64[i+1:]
			saltB64 = saltB64[:i]
			break
		}
	}
	if hashB64 == "" {
		return errBadHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return errBadHash
	}
	expected, err := base64.RawStdEncoding.DecodeString(hashB64)
	if err != nil {
		return errBadHash
	}
	actual := argon2.IDKey([]byte(password), salt, uint32(iterations), uint32(memory), uint8(parallelism), uint32(len(expected)))
	if subtle.ConstantTimeCompare(actual, expected) != 1 {
		return errors.New("directory: password mismatch")
	}
	return nil
}
