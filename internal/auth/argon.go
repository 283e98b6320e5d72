package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const maxPasswordLength = 1024

var (
	// ErrPasswordEmpty is returned when hashing an empty password.
	ErrPasswordEmpty = errors.New("password cannot be empty")
	// ErrPasswordTooLong is returned for passwords over 1024 bytes.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")

	errMalformedHash = errors.New("malformed password hash")
)

// kdf is one argon2id parameter set together with its salt and output.
type kdf struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

var defaultKDF = kdf{memory: 19 * 1024, time: 2, threads: 1}

const (
	saltLen = 16
	keyLen  = 32
)

func (k kdf) derive(password string, size uint32) []byte {
	return argon2.IDKey([]byte(password), k.salt, k.time, k.memory, k.threads, size)
}

// String renders the PHC form $argon2id$v=19$m=..,t=..,p=..$salt$key.
func (k kdf) String() string {
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, k.memory, k.time, k.threads,
		b64.EncodeToString(k.salt), b64.EncodeToString(k.key))
}

func parseKDF(encoded string) (kdf, error) {
	var k kdf
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return k, errMalformedHash
	}
	if fields[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return k, fmt.Errorf("%w: version %q", errMalformedHash, fields[2])
	}
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &k.memory, &k.time, &k.threads); err != nil {
		return k, fmt.Errorf("%w: %v", errMalformedHash, err)
	}
	var err error
	if k.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return k, fmt.Errorf("%w: salt: %v", errMalformedHash, err)
	}
	if k.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return k, fmt.Errorf("%w: key: %v", errMalformedHash, err)
	}
	if len(k.key) == 0 {
		return k, errMalformedHash
	}
	return k, nil
}

// HashPassword derives an argon2id hash of password with a fresh salt.
func HashPassword(password string) (string, error) {
	switch {
	case password == "":
		return "", ErrPasswordEmpty
	case len(password) > maxPasswordLength:
		return "", ErrPasswordTooLong
	}
	k := defaultKDF
	k.salt = make([]byte, saltLen)
	if _, err := rand.Read(k.salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	k.key = k.derive(password, keyLen)
	return k.String(), nil
}

// VerifyPassword reports whether password produced encoded. Malformed
// hashes never match.
func VerifyPassword(encoded, password string) bool {
	if len(password) > maxPasswordLength {
		return false
	}
	k, err := parseKDF(encoded)
	if err != nil {
		return false
	}
	got := k.derive(password, uint32(len(k.key))) //nolint:gosec // key length fits
	return subtle.ConstantTimeCompare(k.key, got) == 1
}
