package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"relayum/file-api/pkg/apperr"
	"relayum/file-api/pkg/blobfmt"
	"relayum/file-api/pkg/crypto"
)

// Blob validation verdicts
const (
	BlobValid             = "valid"
	BlobHeaderCorrupt     = "header-corrupt"
	BlobIntegrityMismatch = "integrity-mismatch"
)

type ValidationResult struct {
	FileID string `json:"file_id"`
	Status string `json:"status"`
}

// ValidateUserStorage walks a user's blob tree, decodes each header and
// checks the header tag against the per-file key. Ciphertext is not re-read;
// the tag binds the recorded hash, which is what egress verifies per byte.
func (s *Store) ValidateUserStorage(userID string, masterKey []byte) ([]ValidationResult, error) {
	root := s.UserDir(userID)

	var results []ValidationResult

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || strings.HasSuffix(path, ".meta") {
			return nil
		}

		fileID := d.Name()

		hdr, err := blobfmt.ReadHeaderFile(path)
		if err != nil {
			results = append(results, ValidationResult{FileID: fileID, Status: BlobHeaderCorrupt})
			return nil
		}

		fileKey, err := crypto.DeriveFileKey(masterKey, fileID)
		if err != nil {
			return err
		}

		status := BlobValid
		if err := crypto.VerifyStreamTag(fileKey, hdr.IV, hdr.Tag, hdr.PlainHash); err != nil {
			if errors.Is(err, apperr.ErrIntegrity) {
				status = BlobIntegrityMismatch
			} else {
				return err
			}
		}

		results = append(results, ValidationResult{FileID: fileID, Status: status})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			// User has never uploaded anything
			return nil, nil
		}

		return nil, err
	}

	return results, nil
}
