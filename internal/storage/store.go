// Package storage owns the on-disk blob layout: per-user sharded
// directories, opaque file IDs, streaming encrypt on the way in and
// verify-decrypt on the way out.
package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

type Store struct {
	Root                string
	ChunkSize           int
	MaxBufferedSize     int64
	SecureDelete        bool
	MaxSecureDeleteSize int64

	// Process-wide sidecar sealing key
	MetadataKey []byte
}

// New builds a Store from the loaded configuration.
func New(metadataKey []byte) *Store {
	return &Store{
		Root:                viper.GetString("storage.root"),
		ChunkSize:           viper.GetInt("storage.chunk_size"),
		MaxBufferedSize:     viper.GetInt64("storage.max_buffered_size"),
		SecureDelete:        viper.GetBool("storage.secure_delete"),
		MaxSecureDeleteSize: viper.GetInt64("storage.max_secure_delete_size"),
		MetadataKey:         metadataKey,
	}
}

// NewFileID allocates the opaque 64-hex-char blob identifier: the SHA-256 of
// original name, owner, upload time and 16 random bytes. The random part
// alone makes collisions unreachable; the rest keeps IDs stable to debug.
func NewFileID(originalName, userID string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate file id nonce: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(originalName))
	h.Write([]byte(":"))
	h.Write([]byte(userID))
	h.Write([]byte(":"))
	h.Write([]byte(strconv.FormatInt(time.Now().UnixMilli(), 10)))
	h.Write([]byte(":"))
	h.Write(nonce)

	return hex.EncodeToString(h.Sum(nil)), nil
}

// BlobPath derives the blob location for a user-owned file. The two-char
// shard level keeps directory fan-out bounded.
func (s *Store) BlobPath(userID, fileID string) string {
	return filepath.Join(s.Root, "users", userID, fileID[:2], fileID)
}

// AnonymousBlobPath derives the blob location inside an anonymous tenancy.
func (s *Store) AnonymousBlobPath(token, fileID string) string {
	return filepath.Join(s.Root, "anonymous", token, fileID)
}

// UserDir is the root of one user's blob tree.
func (s *Store) UserDir(userID string) string {
	return filepath.Join(s.Root, "users", userID)
}

// AnonymousDir is the root of one anonymous tenancy.
func (s *Store) AnonymousDir(token string) string {
	return filepath.Join(s.Root, "anonymous", token)
}

func sidecarPath(blobPath string) string {
	return blobPath + ".meta"
}
