// Package auth holds the cryptographic pieces shared by the local backend
// and the web front end: PASETO keys and tokens, visitor cookies and
// argon2id password hashes.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"aidanwoods.dev/go-paseto"
)

const (
	// PASETO v4 requires a 256-bit (32-byte) symmetric key.
	keyLength    = 32
	keyHexLength = 64
)

// LoadOrGenerateKey reads the hex-encoded PASETO v4 key at path, creating
// the file (mode 0600) with a fresh random key when it does not exist.
func LoadOrGenerateKey(path string) (paseto.V4SymmetricKey, error) {
	//#nosec G304 -- key path comes from configuration
	if raw, err := os.ReadFile(path); err == nil {
		return ParseKey(strings.TrimSpace(string(raw)))
	} else if !os.IsNotExist(err) {
		return paseto.V4SymmetricKey{}, fmt.Errorf("read auth key: %w", err)
	}

	key := make([]byte, keyLength)
	if _, err := rand.Read(key); err != nil {
		return paseto.V4SymmetricKey{}, fmt.Errorf("generate auth key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return paseto.V4SymmetricKey{}, fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return paseto.V4SymmetricKey{}, fmt.Errorf("save auth key: %w", err)
	}

	return paseto.V4SymmetricKeyFromBytes(key)
}

// ParseKey decodes a 64-character hex key.
func ParseKey(keyHex string) (paseto.V4SymmetricKey, error) {
	if len(keyHex) != keyHexLength {
		return paseto.V4SymmetricKey{}, fmt.Errorf("invalid auth key length: expected %d hex chars, got %d", keyHexLength, len(keyHex))
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return paseto.V4SymmetricKey{}, fmt.Errorf("invalid auth key format: not valid hex: %w", err)
	}
	return paseto.V4SymmetricKeyFromBytes(key)
}
