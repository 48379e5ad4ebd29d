package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"relayum/file-api/pkg/blobfmt"
	"relayum/file-api/pkg/crypto"

	"go.uber.org/zap"
)

// Meta is the sealed sidecar record accompanying every blob.
type Meta struct {
	OriginalName string `json:"original_name"`
	Mime         string `json:"mime"`
	UploadedAt   int64  `json:"uploaded_at"`
	OriginalSize int64  `json:"original_size"`
	Hash         string `json:"hash"`
}

// PutResult reports what Put persisted.
type PutResult struct {
	FileID        string
	Path          string
	Size          int64
	EncryptedSize int64
	Hash          string
}

// Put streams src into a new encrypted blob owned by userID. The plaintext
// is hashed on a tee while it is encrypted, so the content hash costs no
// second pass. On any failure the partial blob and sidecar are unlinked.
func (s *Store) Put(ctx context.Context, userID string, src io.Reader, originalName, mime string, masterKey []byte) (*PutResult, error) {
	fileID, err := NewFileID(originalName, userID)
	if err != nil {
		return nil, err
	}

	dest := s.BlobPath(userID, fileID)
	res, err := s.putAt(ctx, dest, fileID, src, originalName, mime, masterKey)
	if err != nil {
		return nil, err
	}

	return res, nil
}

// PutAnonymous is Put for the anonymous tenancy: same container, different
// namespace and no shard level (tenancies are short-lived and small).
func (s *Store) PutAnonymous(ctx context.Context, token string, src io.Reader, originalName, mime string, key []byte) (*PutResult, error) {
	fileID, err := NewFileID(originalName, "anonymous:"+token)
	if err != nil {
		return nil, err
	}

	dest := s.AnonymousBlobPath(token, fileID)
	return s.putAt(ctx, dest, fileID, src, originalName, mime, key)
}

func (s *Store) putAt(ctx context.Context, dest, fileID string, src io.Reader, originalName, mime string, masterKey []byte) (_ *PutResult, retErr error) {
	fileKey, err := crypto.DeriveFileKey(masterKey, fileID)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("create blob: %w", err)
	}

	defer func() {
		out.Close()

		if retErr != nil {
			// Best-effort unlink of the partial blob
			if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
				zap.L().Error("Failed to unlink partial blob", zap.String("path", dest), zap.Error(err))
			}
			os.Remove(sidecarPath(dest))
		}
	}()

	iv := make([]byte, crypto.IVLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	if err := blobfmt.WriteHeaderPlaceholder(out, iv); err != nil {
		return nil, err
	}

	stream, err := crypto.NewStream(fileKey, iv)
	if err != nil {
		return nil, err
	}

	hr := crypto.NewHashReader(src)
	buf := make([]byte, s.ChunkSize)

	var plainSize int64

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ingest cancelled: %w", err)
		}

		n, readErr := hr.Read(buf)
		if n > 0 {
			stream.XORKeyStream(buf[:n], buf[:n])

			if _, err := out.Write(buf[:n]); err != nil {
				return nil, fmt.Errorf("write blob: %w", err)
			}

			plainSize += int64(n)
		}

		if readErr == io.EOF {
			break
		}

		if readErr != nil {
			return nil, fmt.Errorf("read upload stream: %w", readErr)
		}
	}

	digest := hr.Sum()

	tag, err := crypto.SealStreamTag(fileKey, iv, digest)
	if err != nil {
		return nil, err
	}

	if err := blobfmt.FinalizeHeader(out, tag, digest); err != nil {
		return nil, err
	}

	if err := out.Sync(); err != nil {
		return nil, fmt.Errorf("sync blob: %w", err)
	}

	stat, err := out.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat blob: %w", err)
	}

	hash := hex.EncodeToString(digest)

	sealed, err := crypto.SealMetadata(&Meta{
		OriginalName: originalName,
		Mime:         mime,
		UploadedAt:   time.Now().Unix(),
		OriginalSize: plainSize,
		Hash:         hash,
	}, s.MetadataKey)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(sidecarPath(dest), []byte(sealed), 0o640); err != nil {
		return nil, fmt.Errorf("write sidecar: %w", err)
	}

	return &PutResult{
		FileID:        fileID,
		Path:          dest,
		Size:          plainSize,
		EncryptedSize: stat.Size(),
		Hash:          hash,
	}, nil
}
