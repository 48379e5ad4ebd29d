package blobfmt

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"relayum/file-api/pkg/apperr"
	"relayum/file-api/pkg/crypto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	iv := make([]byte, crypto.IVLen)
	tag := make([]byte, crypto.TagLen)
	hash := make([]byte, 32)
	for _, b := range [][]byte{iv, tag, hash} {
		_, err := rand.Read(b)
		require.NoError(t, err)
	}

	path := filepath.Join(t.TempDir(), "blob")
	f, err := os.Create(path)
	require.NoError(t, err)

	require.NoError(t, WriteHeaderPlaceholder(f, iv))
	_, err = f.Write([]byte("ciphertext goes here"))
	require.NoError(t, err)

	require.NoError(t, FinalizeHeader(f, tag, hash))
	require.NoError(t, f.Close())

	hdr, err := ReadHeaderFile(path)
	require.NoError(t, err)
	assert.Equal(t, iv, hdr.IV)
	assert.Equal(t, tag, hdr.Tag)
	assert.Equal(t, hash, hdr.PlainHash)

	// Ciphertext must start exactly at the data offset
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("ciphertext goes here"), raw[DataOffset:])
}

func TestReadHeaderBadMagic(t *testing.T) {
	buf := make([]byte, HeaderLen)
	copy(buf, "NOTRIGHT")

	_, err := ReadHeader(bytes.NewReader(buf))
	assert.ErrorIs(t, err, apperr.ErrFormat)
}

func TestReadHeaderTruncated(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader(Magic))
	assert.ErrorIs(t, err, apperr.ErrInfra)
}

func TestReadHeaderFileMissing(t *testing.T) {
	_, err := ReadHeaderFile(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestWriteHeaderPlaceholderRejectsBadIV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteHeaderPlaceholder(&buf, make([]byte, 4))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
