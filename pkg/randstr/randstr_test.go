package randstr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRandomString(t *testing.T) {
	g := New([]byte("abc123"))

	s := g.GenerateRandomString(22)
	require.Len(t, s, 22)
	for _, c := range s {
		assert.True(t, strings.ContainsRune("abc123", c), "unexpected character %q", c)
	}

	assert.NotEqual(t, g.GenerateRandomString(22), g.GenerateRandomString(22))
}
