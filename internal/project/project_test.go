package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineIsOrderSensitive(t *testing.T) {
	a, b, c := Digest{1}, Digest{2}, Digest{3}
	assert.Equal(t, Combine(a, b, c), Combine(a, b, c))
	assert.NotEqual(t, Combine(a, b, c), Combine(a, c, b))
	assert.NotEqual(t, Combine(a), Combine(b))
}

func TestSaltSeparatesSettings(t *testing.T) {
	assert.Equal(t, Salt(1, "x"), Salt(1, "x"))
	assert.NotEqual(t, Salt(1, "x"), Salt(2, "x"))
	assert.NotEqual(t, Salt(1, "ab", "c"), Salt(1, "a", "bc"))
	assert.False(t, Salt(1).IsZero())
	assert.True(t, Digest{}.IsZero())
}

func TestDigestHexRoundTrip(t *testing.T) {
	d := Salt(7, "kotlin")
	back, err := ParseDigest(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, back)
	assert.Len(t, d.Short(), 12)

	_, err = ParseDigest("abcd")
	assert.Error(t, err)
	_, err = ParseDigest("zz")
	assert.Error(t, err)
}

func TestFindManifestWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "src", "main", "kotlin")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ManifestName), nil, 0o644))

	path, ok, err := FindManifest(nested)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, ManifestName), path)
}
