package commitment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommit(t *testing.T) {
	t.Run("known vector", func(t *testing.T) {
		// sha256("abc")
		assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Commit("abc"))
	})

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, Commit("secret"), Commit("secret"))
	})

	t.Run("empty secret", func(t *testing.T) {
		assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Commit(""))
	})

	t.Run("lowercase fixed length", func(t *testing.T) {
		c := Commit("Giveaway")
		assert.Len(t, c, DigestLen)
		assert.Equal(t, strings.ToLower(c), c)
		assert.True(t, IsDigest(c))
	})
}

func TestVerify(t *testing.T) {
	for _, s := range []string{"", "x", "y", "0xdeadbeef", "ünïcødé", strings.Repeat("a", 4096)} {
		assert.True(t, Verify(Commit(s), s), "secret %q", s)
	}

	assert.False(t, Verify(Commit("x"), "y"))
	assert.False(t, Verify(Commit("x"), "x "))
	assert.False(t, Verify(strings.ToUpper(Commit("x")), "x"))
}

func TestIsDigest(t *testing.T) {
	assert.False(t, IsDigest(""))
	assert.False(t, IsDigest("abc"))
	assert.False(t, IsDigest(strings.Repeat("g", DigestLen)))
	assert.False(t, IsDigest(strings.Repeat("A", DigestLen)))
	assert.True(t, IsDigest(strings.Repeat("0", DigestLen)))
}

func TestNewSecret(t *testing.T) {
	a, err := NewSecret()
	require.NoError(t, err)
	b, err := NewSecret()
	require.NoError(t, err)

	assert.Len(t, a, secretBytes*2)
	assert.NotEqual(t, a, b)
}
