package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		v, err := Generate(PrefixVisitor)
		require.NoError(t, err)
		assert.False(t, seen[v], "duplicate id %s", v)
		seen[v] = true
	}
}

func TestGenerate_Format(t *testing.T) {
	for _, prefix := range []string{PrefixVisitor, PrefixToken, PrefixRefresh} {
		t.Run(prefix, func(t *testing.T) {
			v := MustGenerate(prefix)
			assert.True(t, strings.HasPrefix(v, prefix+"-"))
			assert.Len(t, v, len(prefix)+1+21)
			assert.True(t, HasPrefix(v, prefix))
		})
	}
}

func TestHasPrefix(t *testing.T) {
	assert.False(t, HasPrefix("vis-", PrefixVisitor))
	assert.False(t, HasPrefix("tok-abc", PrefixVisitor))
	assert.False(t, HasPrefix("visabc", PrefixVisitor))
}

func TestRow(t *testing.T) {
	r := Row()
	assert.True(t, ValidRow(r))
	assert.NotEqual(t, r, Row())
	assert.False(t, ValidRow("not-a-uuid"))
}
