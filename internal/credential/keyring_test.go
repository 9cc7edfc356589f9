package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultRoundTrip(t *testing.T) {
	v := NewVault(keyring.NewArrayKeyring(nil))

	_, err := v.Get(KeyLegacyPassword)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, v.Set(KeyLegacyPassword, "hunter2"))
	got, err := v.Get(KeyLegacyPassword)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	require.NoError(t, v.Delete(KeyLegacyPassword))
	_, err = v.Get(KeyLegacyPassword)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVaultDeleteMissing(t *testing.T) {
	v := NewVault(keyring.NewArrayKeyring(nil))
	assert.NoError(t, v.Delete("absent"))
}
