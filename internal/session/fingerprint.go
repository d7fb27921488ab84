package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives the stored device fingerprint from the raw user-agent
// string using a keyed hash. The plaintext user agent is never persisted or
// compared directly.
func Fingerprint(secret []byte, userAgent string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(userAgent))
	return hex.EncodeToString(mac.Sum(nil))
}

// newReturnHash produces a fresh correlation hash: a keyed hash over random
// bytes, never derived from request content.
func newReturnHash(secret []byte) (string, error) {
	var random [32]byte
	if _, err := rand.Read(random[:]); err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(random[:])
	return hex.EncodeToString(mac.Sum(nil)), nil
}
