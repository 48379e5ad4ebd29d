package storage

import (
	"crypto/rand"
	"fmt"
	"os"

	"relayum/file-api/pkg/apperr"

	"go.uber.org/zap"
)

const overwritePasses = 3

// Delete unlinks a blob and its sidecar. When secure delete is enabled and
// the blob is small enough, the ciphertext is overwritten with random bytes
// first. Bigger blobs are simply unlinked: the ciphertext was the only
// sensitive representation on disk anyway.
func (s *Store) Delete(userID, fileID string) error {
	return s.deleteAt(s.BlobPath(userID, fileID))
}

// DeleteAnonymous removes one blob from an anonymous tenancy.
func (s *Store) DeleteAnonymous(token, fileID string) error {
	return s.deleteAt(s.AnonymousBlobPath(token, fileID))
}

// DeleteAnonymousTenancy removes a whole expired tenancy directory.
func (s *Store) DeleteAnonymousTenancy(token string) error {
	dir := s.AnonymousDir(token)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("read tenancy dir: %w", err)
	}

	for _, e := range entries {
		if err := s.deleteAt(dir + string(os.PathSeparator) + e.Name()); err != nil {
			zap.L().Error("Failed to purge anonymous blob", zap.String("token", token), zap.Error(err))
		}
	}

	if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove tenancy dir: %w", err)
	}

	return nil
}

func (s *Store) deleteAt(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: blob missing", apperr.ErrNotFound)
		}

		return fmt.Errorf("stat blob: %w", err)
	}

	if s.SecureDelete && stat.Size() <= s.MaxSecureDeleteSize {
		if err := overwrite(path, stat.Size()); err != nil {
			zap.L().Warn("Secure overwrite failed, falling back to plain unlink", zap.Error(err))
		}
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("unlink blob: %w", err)
	}

	if err := os.Remove(sidecarPath(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlink sidecar: %w", err)
	}

	return nil
}

func overwrite(path string, size int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, 64<<10)

	for range overwritePasses {
		if _, err := f.Seek(0, 0); err != nil {
			return err
		}

		remaining := size
		for remaining > 0 {
			n := int64(len(buf))
			if remaining < n {
				n = remaining
			}

			if _, err := rand.Read(buf[:n]); err != nil {
				return err
			}

			if _, err := f.Write(buf[:n]); err != nil {
				return err
			}

			remaining -= n
		}

		if err := f.Sync(); err != nil {
			return err
		}
	}

	return nil
}
