package uid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a, b := New(), New()
	assert.True(t, IsValid(a))
	assert.NotEqual(t, a, b)
	assert.False(t, IsValid("not-a-uuid"))
}

func TestToken(t *testing.T) {
	tok, err := Token("opl_", 16)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tok, "opl_"))
	assert.Len(t, tok, len("opl_")+32)
}
