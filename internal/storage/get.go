package storage

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"relayum/file-api/pkg/apperr"
	"relayum/file-api/pkg/blobfmt"
	"relayum/file-api/pkg/crypto"
)

// Blob is an open, authenticated decrypt stream. Read returns IntegrityError
// from the final chunk when the plaintext hash does not match the header.
type Blob struct {
	io.Reader

	Size int64 // plaintext bytes
	Hash string
	Meta *Meta

	f *os.File
}

func (b *Blob) Close() error {
	return b.f.Close()
}

// StreamGet opens the blob for userID/fileID and returns a verifying decrypt
// stream. The header tag is checked before the first plaintext byte leaves.
func (s *Store) StreamGet(userID, fileID string, masterKey []byte) (*Blob, error) {
	return s.streamAt(s.BlobPath(userID, fileID), fileID, masterKey)
}

// StreamGetAnonymous is StreamGet against an anonymous tenancy.
func (s *Store) StreamGetAnonymous(token, fileID string, key []byte) (*Blob, error) {
	return s.streamAt(s.AnonymousBlobPath(token, fileID), fileID, key)
}

func (s *Store) streamAt(path, fileID string, masterKey []byte) (*Blob, error) {
	fileKey, err := crypto.DeriveFileKey(masterKey, fileID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: blob missing", apperr.ErrNotFound)
		}

		return nil, fmt.Errorf("open blob: %w", err)
	}

	hdr, err := blobfmt.ReadHeader(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	// Authenticate the recorded hash before any plaintext is produced
	if err := crypto.VerifyStreamTag(fileKey, hdr.IV, hdr.Tag, hdr.PlainHash); err != nil {
		f.Close()
		return nil, err
	}

	stream, err := crypto.NewStream(fileKey, hdr.IV)
	if err != nil {
		f.Close()
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat blob: %w", err)
	}

	decrypted := &streamReader{r: f, stream: stream}

	blob := &Blob{
		Reader: crypto.NewVerifyReader(decrypted, hdr.PlainHash),
		Size:   stat.Size() - blobfmt.HeaderLen,
		Hash:   hex.EncodeToString(hdr.PlainHash),
		f:      f,
	}

	if meta, err := s.readSidecar(path); err == nil {
		blob.Meta = meta
	}

	return blob, nil
}

// Get returns the whole plaintext when it fits the buffering cap, verifying
// integrity before returning. Larger files must go through StreamGet.
func (s *Store) Get(userID, fileID string, masterKey []byte) ([]byte, error) {
	blob, err := s.StreamGet(userID, fileID, masterKey)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	if blob.Size > s.MaxBufferedSize {
		return nil, fmt.Errorf("%w: blob exceeds buffered read limit", apperr.ErrValidation)
	}

	return io.ReadAll(blob)
}

func (s *Store) readSidecar(blobPath string) (*Meta, error) {
	raw, err := os.ReadFile(sidecarPath(blobPath))
	if err != nil {
		return nil, fmt.Errorf("read sidecar: %w", err)
	}

	var meta Meta
	if err := crypto.OpenMetadata(string(raw), s.MetadataKey, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

type streamReader struct {
	r      io.Reader
	stream interface{ XORKeyStream(dst, src []byte) }
}

func (sr *streamReader) Read(p []byte) (int, error) {
	n, err := sr.r.Read(p)
	if n > 0 {
		sr.stream.XORKeyStream(p[:n], p[:n])
	}

	return n, err
}
