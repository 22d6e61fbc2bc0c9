// Package auth provides admin API key hashing and verification.
package auth

import (
	"errors"
	"strings"

	"github.com/alexedwards/argon2id"
)

// ErrInvalidKey is returned when an API key matches no configured hash.
var ErrInvalidKey = errors.New("invalid api key")

// argon2idParams defines OWASP minimum parameters for Argon2id.
// Memory: 47 MiB, Iterations: 1, Parallelism: 1
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashKey returns an Argon2id hash of the raw key in PHC format.
// Format: $argon2id$v=19$m=48128,t=1,p=1$<salt>$<hash>
func HashKey(rawKey string) (string, error) {
	return argon2id.CreateHash(rawKey, argon2idParams)
}

// VerifyKey checks a raw key against a stored PHC-format hash.
func VerifyKey(rawKey, storedHash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(rawKey, storedHash)
}

// IsArgon2idHash reports whether a stored hash is in PHC Argon2id format.
// Used at config validation so malformed hashes are rejected at startup.
func IsArgon2idHash(storedHash string) bool {
	return strings.HasPrefix(storedHash, "$argon2id$")
}

// KeyVerifier validates presented admin API keys against a fixed set of
// configured hashes.
type KeyVerifier struct {
	hashes []string
}

// NewKeyVerifier creates a verifier over the configured key hashes.
func NewKeyVerifier(hashes []string) *KeyVerifier {
	return &KeyVerifier{hashes: hashes}
}

// Verify checks the raw key against every configured hash.
// Returns ErrInvalidKey when none matches.
func (v *KeyVerifier) Verify(rawKey string) error {
	for _, h := range v.hashes {
		match, err := VerifyKey(rawKey, h)
		if err != nil {
			continue
		}
		if match {
			return nil
		}
	}
	return ErrInvalidKey
}

// Empty reports whether no keys are configured.
func (v *KeyVerifier) Empty() bool {
	return len(v.hashes) == 0
}
