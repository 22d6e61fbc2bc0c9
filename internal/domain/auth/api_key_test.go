package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndVerifyKey(t *testing.T) {
	hash, err := HashKey("test-admin-key")
	if err != nil {
		t.Fatalf("HashKey returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("hash %q is not in PHC Argon2id format", hash)
	}

	match, err := VerifyKey("test-admin-key", hash)
	if err != nil {
		t.Fatalf("VerifyKey returned error: %v", err)
	}
	if !match {
		t.Error("correct key did not verify")
	}

	match, err = VerifyKey("wrong-key", hash)
	if err != nil {
		t.Fatalf("VerifyKey returned error: %v", err)
	}
	if match {
		t.Error("wrong key verified")
	}
}

func TestIsArgon2idHash(t *testing.T) {
	if !IsArgon2idHash("$argon2id$v=19$m=48128,t=1,p=1$c2FsdA$aGFzaA") {
		t.Error("PHC Argon2id hash not recognized")
	}
	if IsArgon2idHash("sha256:deadbeef") {
		t.Error("sha256 hash recognized as Argon2id")
	}
	if IsArgon2idHash("") {
		t.Error("empty string recognized as Argon2id")
	}
}

func TestKeyVerifier(t *testing.T) {
	hash, err := HashKey("key-one")
	if err != nil {
		t.Fatalf("HashKey returned error: %v", err)
	}

	v := NewKeyVerifier([]string{hash})
	if v.Empty() {
		t.Error("verifier with a hash reported Empty")
	}
	if err := v.Verify("key-one"); err != nil {
		t.Errorf("Verify rejected a configured key: %v", err)
	}
	if err := v.Verify("key-two"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Verify(\"key-two\") = %v, want ErrInvalidKey", err)
	}
}

func TestKeyVerifierEmpty(t *testing.T) {
	v := NewKeyVerifier(nil)
	if !v.Empty() {
		t.Error("verifier with no hashes did not report Empty")
	}
	if err := v.Verify("anything"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Verify on empty verifier = %v, want ErrInvalidKey", err)
	}
}
