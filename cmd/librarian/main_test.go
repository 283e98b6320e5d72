package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command with args and returns its stdout.
func run(t *testing.T, dataDir, stdin string, args ...string) (string, error) {
	t.Helper()
	base := []string{
		"--env", "development",
		"--log-level", "error",
		"--backend", "local",
		"--env-file", filepath.Join(dataDir, "missing.env"),
		"--data", dataDir,
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append(args, base...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMigrate_UpAndStatus(t *testing.T) {
	dataDir := t.TempDir()

	out, err := run(t, dataDir, "", "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "schema at version")

	out, err = run(t, dataDir, "", "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "VERSION")
	assert.NotContains(t, out, "pending")
}

func TestUser_CreateGrantAndSeed(t *testing.T) {
	dataDir := t.TempDir()

	out, err := run(t, dataDir, "correct-horse-battery\n", "user", "create", "--email", "ada@example.com", "--role", "member")
	require.NoError(t, err)
	assert.Contains(t, out, "created ada@example.com")

	out, err = run(t, dataDir, "", "user", "grant-role", "--email", "ada@example.com", "--role", "librarian")
	require.NoError(t, err)
	assert.Contains(t, out, `now has role "librarian"`)

	catalog := filepath.Join(dataDir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte(`
categories:
  - name: History
books:
  - title: The Histories
    year: 1996
    copies: 2
`), 0o600))

	out, err = run(t, dataDir, "correct-horse-battery\n", "seed", "--file", catalog, "--as", "ada@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "categories: 1 created, 0 skipped")
	assert.Contains(t, out, "books: 1 created, 0 skipped")
}

func TestUser_GrantRoleUnknownEmail(t *testing.T) {
	_, err := run(t, t.TempDir(), "", "user", "grant-role", "--email", "ghost@example.com", "--role", "librarian")
	assert.Error(t, err)
}

func TestSeed_WrongPassword(t *testing.T) {
	dataDir := t.TempDir()
	_, err := run(t, dataDir, "correct-horse-battery\n", "user", "create", "--email", "ada@example.com", "--role", "librarian")
	require.NoError(t, err)

	catalog := filepath.Join(dataDir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte("categories:\n  - name: Art\n"), 0o600))

	_, err = run(t, dataDir, "wrong-password\n", "seed", "--file", catalog, "--as", "ada@example.com")
	assert.Error(t, err)
}
