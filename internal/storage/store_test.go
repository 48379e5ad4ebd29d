package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"testing"

	"relayum/file-api/pkg/apperr"
	"relayum/file-api/pkg/crypto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, []byte) {
	t.Helper()

	metadataKey := make([]byte, crypto.KeyLen)
	_, err := rand.Read(metadataKey)
	require.NoError(t, err)

	store := &Store{
		Root:            t.TempDir(),
		ChunkSize:       4 << 10,
		MaxBufferedSize: 1 << 20,
		MetadataKey:     metadataKey,
	}

	masterKey := make([]byte, crypto.KeyLen)
	_, err = rand.Read(masterKey)
	require.NoError(t, err)

	return store, masterKey
}

func TestPutGetRoundTrip(t *testing.T) {
	store, masterKey := newTestStore(t)

	// Larger than the chunk size so the loop runs more than once
	plain := make([]byte, 20<<10)
	_, err := rand.Read(plain)
	require.NoError(t, err)

	res, err := store.Put(context.Background(), "u1", bytes.NewReader(plain), "notes.txt", "text/plain", masterKey)
	require.NoError(t, err)
	assert.Len(t, res.FileID, 64)
	assert.Equal(t, int64(len(plain)), res.Size)
	assert.Greater(t, res.EncryptedSize, res.Size)

	want := sha256.Sum256(plain)
	assert.Equal(t, hex.EncodeToString(want[:]), res.Hash)

	// Ciphertext on disk must not contain the plaintext
	raw, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(raw, plain[:64]))

	blob, err := store.StreamGet("u1", res.FileID, masterKey)
	require.NoError(t, err)
	defer blob.Close()

	out, err := io.ReadAll(blob)
	require.NoError(t, err)
	assert.Equal(t, plain, out)

	require.NotNil(t, blob.Meta)
	assert.Equal(t, "notes.txt", blob.Meta.OriginalName)
	assert.Equal(t, "text/plain", blob.Meta.Mime)
	assert.Equal(t, int64(len(plain)), blob.Meta.OriginalSize)
}

func TestStreamGetWrongKey(t *testing.T) {
	store, masterKey := newTestStore(t)

	res, err := store.Put(context.Background(), "u1", bytes.NewReader([]byte("secret")), "a.bin", "application/octet-stream", masterKey)
	require.NoError(t, err)

	wrong := make([]byte, crypto.KeyLen)
	_, err = rand.Read(wrong)
	require.NoError(t, err)

	// The header tag check fails before any plaintext is produced
	_, err = store.StreamGet("u1", res.FileID, wrong)
	assert.ErrorIs(t, err, apperr.ErrIntegrity)
}

func TestStreamGetDetectsCiphertextTampering(t *testing.T) {
	store, masterKey := newTestStore(t)

	plain := make([]byte, 8<<10)
	_, err := rand.Read(plain)
	require.NoError(t, err)

	res, err := store.Put(context.Background(), "u1", bytes.NewReader(plain), "a.bin", "application/octet-stream", masterKey)
	require.NoError(t, err)

	// Flip one ciphertext bit past the header
	raw, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	require.NoError(t, os.WriteFile(res.Path, raw, 0o640))

	blob, err := store.StreamGet("u1", res.FileID, masterKey)
	require.NoError(t, err)
	defer blob.Close()

	_, err = io.ReadAll(blob)
	assert.ErrorIs(t, err, apperr.ErrIntegrity)
}

func TestGetBufferedCap(t *testing.T) {
	store, masterKey := newTestStore(t)
	store.MaxBufferedSize = 16

	res, err := store.Put(context.Background(), "u1", bytes.NewReader(make([]byte, 64)), "big.bin", "application/octet-stream", masterKey)
	require.NoError(t, err)

	_, err = store.Get("u1", res.FileID, masterKey)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	store.MaxBufferedSize = 1 << 20
	out, err := store.Get("u1", res.FileID, masterKey)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 64), out)
}

func TestPutCancelledContextUnlinksPartialBlob(t *testing.T) {
	store, masterKey := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Put(ctx, "u1", bytes.NewReader(make([]byte, 1<<10)), "a.bin", "application/octet-stream", masterKey)
	require.Error(t, err)

	entries, err := os.ReadDir(store.UserDir("u1"))
	if err == nil {
		// Shard dirs may remain but no blob or sidecar files
		for _, e := range entries {
			sub, err := os.ReadDir(store.UserDir("u1") + "/" + e.Name())
			require.NoError(t, err)
			assert.Empty(t, sub)
		}
	}
}

func TestDelete(t *testing.T) {
	store, masterKey := newTestStore(t)

	res, err := store.Put(context.Background(), "u1", bytes.NewReader([]byte("bye")), "a.txt", "text/plain", masterKey)
	require.NoError(t, err)

	require.NoError(t, store.Delete("u1", res.FileID))

	_, err = store.StreamGet("u1", res.FileID, masterKey)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// Second delete reports the missing blob
	assert.ErrorIs(t, store.Delete("u1", res.FileID), apperr.ErrNotFound)
}

func TestSecureDeleteOverwrites(t *testing.T) {
	store, masterKey := newTestStore(t)
	store.SecureDelete = true
	store.MaxSecureDeleteSize = 1 << 20

	res, err := store.Put(context.Background(), "u1", bytes.NewReader([]byte("shred me")), "a.txt", "text/plain", masterKey)
	require.NoError(t, err)

	require.NoError(t, store.Delete("u1", res.FileID))

	_, err = os.Stat(res.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestValidateUserStorage(t *testing.T) {
	store, masterKey := newTestStore(t)

	good, err := store.Put(context.Background(), "u1", bytes.NewReader([]byte("fine")), "good.txt", "text/plain", masterKey)
	require.NoError(t, err)

	bad, err := store.Put(context.Background(), "u1", bytes.NewReader([]byte("damaged")), "bad.txt", "text/plain", masterKey)
	require.NoError(t, err)

	// Corrupt the stored hash, which the header tag no longer matches
	f, err := os.OpenFile(bad.Path, os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xFF, 0xFF}, 40)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	results, err := store.ValidateUserStorage("u1", masterKey)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[string]string{}
	for _, r := range results {
		byID[r.FileID] = r.Status
	}

	assert.Equal(t, BlobValid, byID[good.FileID])
	assert.Equal(t, BlobIntegrityMismatch, byID[bad.FileID])
}

func TestValidateUserStorageNoUploads(t *testing.T) {
	store, masterKey := newTestStore(t)

	results, err := store.ValidateUserStorage("ghost", masterKey)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAnonymousTenancy(t *testing.T) {
	store, masterKey := newTestStore(t)

	res, err := store.PutAnonymous(context.Background(), "tok123", bytes.NewReader([]byte("drop")), "d.txt", "text/plain", masterKey)
	require.NoError(t, err)

	blob, err := store.StreamGetAnonymous("tok123", res.FileID, masterKey)
	require.NoError(t, err)

	out, err := io.ReadAll(blob)
	require.NoError(t, err)
	blob.Close()
	assert.Equal(t, []byte("drop"), out)

	require.NoError(t, store.DeleteAnonymousTenancy("tok123"))

	_, err = store.StreamGetAnonymous("tok123", res.FileID, masterKey)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
