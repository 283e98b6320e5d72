// Package id generates identifiers: prefixed NanoIDs for server-side
// handles (visitors, token ids, refresh tokens) and UUIDs for catalog rows.
package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for generated handles.
const (
	PrefixVisitor = "vis"
	PrefixToken   = "tok"
	PrefixRefresh = "rt"
)

// Generate creates a prefixed NanoID, e.g. "vis-V1StGXR8_Z5jdHi6B-myT".
// Returns an error if the system has insufficient entropy.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// HasPrefix reports whether id was generated with prefix.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"-") && len(id) > len(prefix)+1
}

// Row returns a new random UUID string for a catalog row.
func Row() string {
	return uuid.NewString()
}

// ValidRow reports whether s parses as a UUID.
func ValidRow(s string) bool {
	return uuid.Validate(s) == nil
}
