package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealSecretRoundTrip(t *testing.T) {
	key := DeriveSealKey("gateway-passphrase")

	sealed, err := SealSecret(key, "sk_live_0123456789abcdef")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "sk_live")

	opened, err := OpenSecret(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk_live_0123456789abcdef", opened)

	// A fresh nonce makes every sealing distinct.
	again, err := SealSecret(key, "sk_live_0123456789abcdef")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again)
}

func TestOpenSecretRejectsWrongKey(t *testing.T) {
	sealed, err := SealSecret(DeriveSealKey("right"), "secret")
	require.NoError(t, err)

	_, err = OpenSecret(DeriveSealKey("wrong"), sealed)
	assert.ErrorIs(t, err, ErrSealedSecret)
}

func TestOpenSecretRejectsGarbage(t *testing.T) {
	key := DeriveSealKey("k")

	_, err := OpenSecret(key, "not-base64!!!")
	assert.ErrorIs(t, err, ErrSealedSecret)

	_, err = OpenSecret(key, "AA")
	assert.ErrorIs(t, err, ErrSealedSecret)
}
