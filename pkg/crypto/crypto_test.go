package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"testing"

	"relayum/file-api/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) []byte {
	t.Helper()

	key := make([]byte, KeyLen)
	_, err := rand.Read(key)
	require.NoError(t, err)

	return key
}

func TestDeriveMasterKeyDeterministic(t *testing.T) {
	key1, salt, err := DeriveMasterKey("correct horse battery staple", nil)
	require.NoError(t, err)
	require.Len(t, key1, KeyLen)
	require.Len(t, salt, SaltLen)

	key2, salt2, err := DeriveMasterKey("correct horse battery staple", salt)
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
	assert.Equal(t, salt, salt2)

	key3, _, err := DeriveMasterKey("different password", salt)
	require.NoError(t, err)
	assert.NotEqual(t, key1, key3)
}

func TestDeriveFileKeyIsolation(t *testing.T) {
	master := randomKey(t)

	a, err := DeriveFileKey(master, "file-a")
	require.NoError(t, err)

	b, err := DeriveFileKey(master, "file-b")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)

	again, err := DeriveFileKey(master, "file-a")
	require.NoError(t, err)
	assert.Equal(t, a, again)
}

func TestEncryptDecryptBuffer(t *testing.T) {
	key := randomKey(t)
	plain := []byte("some file contents that should round-trip")

	ct, iv, tag, err := EncryptBuffer(key, plain)
	require.NoError(t, err)
	require.Len(t, iv, IVLen)
	require.Len(t, tag, TagLen)
	assert.NotEqual(t, plain, ct)

	out, err := DecryptBuffer(key, ct, iv, tag)
	require.NoError(t, err)
	assert.Equal(t, plain, out)
}

func TestDecryptBufferRejectsTampering(t *testing.T) {
	key := randomKey(t)

	ct, iv, tag, err := EncryptBuffer(key, []byte("payload"))
	require.NoError(t, err)

	ct[0] ^= 0x01
	_, err = DecryptBuffer(key, ct, iv, tag)
	assert.ErrorIs(t, err, apperr.ErrIntegrity)

	ct[0] ^= 0x01
	tag[0] ^= 0x01
	_, err = DecryptBuffer(key, ct, iv, tag)
	assert.ErrorIs(t, err, apperr.ErrIntegrity)
}

func TestSealOpenMetadata(t *testing.T) {
	key := randomKey(t)

	type sidecar struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	}

	sealed, err := SealMetadata(&sidecar{Name: "report.pdf", Size: 1234}, key)
	require.NoError(t, err)

	var out sidecar
	require.NoError(t, OpenMetadata(sealed, key, &out))
	assert.Equal(t, "report.pdf", out.Name)
	assert.Equal(t, int64(1234), out.Size)

	var miss sidecar
	err = OpenMetadata(sealed, randomKey(t), &miss)
	assert.ErrorIs(t, err, apperr.ErrIntegrity)
}

func TestKeyWellFormed(t *testing.T) {
	assert.True(t, KeyWellFormed(randomKey(t)))
	assert.False(t, KeyWellFormed(make([]byte, KeyLen)))
	assert.False(t, KeyWellFormed(bytes.Repeat([]byte{0xAB}, KeyLen)))
	assert.False(t, KeyWellFormed(make([]byte, 16)))
	assert.False(t, KeyWellFormed(nil))
}

func TestMetadataKeyFromHex(t *testing.T) {
	key := randomKey(t)

	out, err := MetadataKeyFromHex(hex.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, out)

	_, err = MetadataKeyFromHex("")
	assert.ErrorIs(t, err, apperr.ErrConfig)

	_, err = MetadataKeyFromHex("not-hex")
	assert.ErrorIs(t, err, apperr.ErrConfig)

	_, err = MetadataKeyFromHex("abcd")
	assert.ErrorIs(t, err, apperr.ErrConfig)

	_, err = MetadataKeyFromHex(hex.EncodeToString(make([]byte, KeyLen)))
	assert.ErrorIs(t, err, apperr.ErrConfig)
}
