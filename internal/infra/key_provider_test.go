package infra

import (
	"encoding/hex"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileKeyProvider_RoundTrip(t *testing.T) {
	provider := NewFileKeyProvider(t.TempDir())
	assert.False(t, provider.KeyExists())

	key, err := GenerateKey()
	require.NoError(t, err)
	require.NoError(t, provider.StoreKey(key))
	assert.True(t, provider.KeyExists())

	info, err := os.Stat(provider.keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	retrieved, err := provider.GetKey()
	require.NoError(t, err)
	assert.Equal(t, key, retrieved)

	// On-disk format is hex so the key can be pasted into a DSN by hand.
	raw, err := os.ReadFile(provider.keyPath)
	require.NoError(t, err)
	decoded, err := hex.DecodeString(string(raw))
	require.NoError(t, err)
	assert.Equal(t, key, decoded)
}

func TestFileKeyProvider_GetKeyErrors(t *testing.T) {
	t.Run("missing key file", func(t *testing.T) {
		provider := NewFileKeyProvider(t.TempDir())
		_, err := provider.GetKey()
		assert.Error(t, err)
	})

	t.Run("loose permissions rejected", func(t *testing.T) {
		provider := NewFileKeyProvider(t.TempDir())
		key, err := GenerateKey()
		require.NoError(t, err)
		require.NoError(t, provider.StoreKey(key))
		require.NoError(t, os.Chmod(provider.keyPath, 0644))

		_, err = provider.GetKey()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "loose permissions")
	})

	t.Run("corrupt key file", func(t *testing.T) {
		provider := NewFileKeyProvider(t.TempDir())
		require.NoError(t, os.WriteFile(provider.keyPath, []byte("not hex"), 0600))

		_, err := provider.GetKey()
		assert.Error(t, err)
	})
}

func TestFileKeyProvider_StoreKeyErrors(t *testing.T) {
	t.Run("wrong key size", func(t *testing.T) {
		provider := NewFileKeyProvider(t.TempDir())
		err := provider.StoreKey([]byte("tooshort"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid key size")
	})

	t.Run("never overwrites an existing key", func(t *testing.T) {
		provider := NewFileKeyProvider(t.TempDir())
		key, err := GenerateKey()
		require.NoError(t, err)
		require.NoError(t, provider.StoreKey(key))

		replacement, err := GenerateKey()
		require.NoError(t, err)
		require.Error(t, provider.StoreKey(replacement))

		retrieved, err := provider.GetKey()
		require.NoError(t, err)
		assert.Equal(t, key, retrieved)
	})
}

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, key, keySize)

	other, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestEnsureKey(t *testing.T) {
	provider := NewFileKeyProvider(t.TempDir())

	key, err := EnsureKey(provider)
	require.NoError(t, err)
	assert.Len(t, key, keySize)
	assert.True(t, provider.KeyExists())

	again, err := EnsureKey(provider)
	require.NoError(t, err)
	assert.Equal(t, key, again)
}
