package service

import (
	"archive/zip"
	"fmt"
	"io"
	"time"

	"relayum/file-api/internal/storage"
	"relayum/file-api/model"
	"relayum/file-api/pkg/apperr"

	"github.com/spf13/viper"
	"gorm.io/gorm"
)

// Egress resolves a file row to a verified decrypt stream: authorize, refuse
// infected or expired files, open the blob with the owner's key. Download
// counters bump only after a stream completes successfully.
type Egress struct {
	DB      *gorm.DB
	Store   *storage.Store
	Folders *Folders

	MetadataKey     []byte
	MaxDownloadSize int64
}

func NewEgress(db *gorm.DB, store *storage.Store, folders *Folders, metadataKey []byte) *Egress {
	return &Egress{
		DB:              db,
		Store:           store,
		Folders:         folders,
		MetadataKey:     metadataKey,
		MaxDownloadSize: viper.GetInt64("download.max_size"),
	}
}

// OpenOwnerFile opens a file for its owner.
func (e *Egress) OpenOwnerFile(userID string, fileRowID uint) (*storage.Blob, *model.File, error) {
	var file model.File

	err := e.DB.Where("user_id = ? AND id = ?", userID, fileRowID).First(&file).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, fmt.Errorf("%w: file missing", apperr.ErrNotFound)
		}

		return nil, nil, fmt.Errorf("%w: load file, %v", apperr.ErrInfra, err)
	}

	return e.open(&file)
}

// OpenSharedFile opens a file reached through an authorized share. For file
// shares the row must match; for folder shares the file must live inside the
// shared subtree.
func (e *Egress) OpenSharedFile(share *model.Share, fileRowID uint) (*storage.Blob, *model.File, error) {
	if share.FileID != nil {
		if *share.FileID != fileRowID {
			return nil, nil, fmt.Errorf("%w: file not covered by share", apperr.ErrForbidden)
		}
	} else if share.FolderID != nil {
		files, err := e.Folders.FilesRecursive(share.SharedBy, *share.FolderID)
		if err != nil {
			return nil, nil, err
		}

		covered := false
		for _, fw := range files {
			if fw.File.ID == fileRowID {
				covered = true
				break
			}
		}

		if !covered {
			return nil, nil, fmt.Errorf("%w: file not covered by share", apperr.ErrForbidden)
		}
	} else {
		return nil, nil, fmt.Errorf("%w: share references nothing", apperr.ErrInfra)
	}

	var file model.File
	err := e.DB.Where("user_id = ? AND id = ?", share.SharedBy, fileRowID).First(&file).Error
	if err != nil {
		return nil, nil, fmt.Errorf("%w: file missing", apperr.ErrNotFound)
	}

	return e.open(&file)
}

// ShareSelection resolves what a share serves: the covered files and their
// total plaintext size, for the size guard and the single-file shortcut.
func (e *Egress) ShareSelection(share *model.Share) ([]FileWithPath, error) {
	if share.FileID != nil {
		var file model.File
		err := e.DB.Where("user_id = ? AND id = ?", share.SharedBy, *share.FileID).First(&file).Error
		if err != nil {
			return nil, fmt.Errorf("%w: file missing", apperr.ErrNotFound)
		}

		return []FileWithPath{{File: file, RelPath: file.OriginalName}}, nil
	}

	if share.FolderID != nil {
		return e.Folders.FilesRecursive(share.SharedBy, *share.FolderID)
	}

	return nil, fmt.Errorf("%w: share references nothing", apperr.ErrInfra)
}

// GuardSize applies the bulk download cap before any bytes are sent.
func (e *Egress) GuardSize(files []FileWithPath) error {
	var total int64
	for _, fw := range files {
		total += fw.File.Size
	}

	if total > e.MaxDownloadSize {
		return fmt.Errorf("%w: selection exceeds download size limit", apperr.ErrTooLarge)
	}

	return nil
}

// StreamZip decrypts each selected file into a ZIP entry flushed straight to
// w; the archive is never materialized.
func (e *Egress) StreamZip(w io.Writer, ownerID string, files []FileWithPath) error {
	owner, err := e.owner(ownerID)
	if err != nil {
		return err
	}

	masterKey, err := UnsealUserKey(owner, e.MetadataKey)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)

	for _, fw := range files {
		if err := e.refuse(&fw.File); err != nil {
			return err
		}

		blob, err := e.Store.StreamGet(ownerID, fw.File.FileID, masterKey)
		if err != nil {
			return err
		}

		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:     fw.RelPath,
			Method:   zip.Deflate,
			Modified: time.Unix(fw.File.CreatedAt, 0),
		})
		if err != nil {
			blob.Close()
			return fmt.Errorf("create zip entry: %w", err)
		}

		if _, err := io.Copy(entry, blob); err != nil {
			blob.Close()
			return err
		}

		blob.Close()
	}

	return zw.Close()
}

// RecordDownload bumps the per-file and per-user counters after a stream
// finished without error.
func (e *Egress) RecordDownload(file *model.File) {
	e.DB.
		Model(model.File{}).
		Where("id = ?", file.ID).
		Update("downloads", gorm.Expr("downloads + ?", 1))

	e.DB.
		Model(model.Stats{}).
		Where("user_id = ?", file.UserID).
		Update("total_downloads", gorm.Expr("total_downloads + ?", 1))
}

func (e *Egress) open(file *model.File) (*storage.Blob, *model.File, error) {
	if err := e.refuse(file); err != nil {
		return nil, nil, err
	}

	owner, err := e.owner(file.UserID)
	if err != nil {
		return nil, nil, err
	}

	masterKey, err := UnsealUserKey(owner, e.MetadataKey)
	if err != nil {
		return nil, nil, err
	}

	blob, err := e.Store.StreamGet(file.UserID, file.FileID, masterKey)
	if err != nil {
		return nil, nil, err
	}

	return blob, file, nil
}

// refuse rejects files the scan hook flagged and files past their expiry.
func (e *Egress) refuse(file *model.File) error {
	if file.ScanStatus == model.ScanInfected {
		return fmt.Errorf("%w: file flagged by virus scan", apperr.ErrForbidden)
	}

	if file.ExpiresAt != nil && *file.ExpiresAt < time.Now().Unix() {
		return fmt.Errorf("%w: file expired", apperr.ErrGone)
	}

	return nil
}

func (e *Egress) owner(userID string) (*model.User, error) {
	var user model.User

	err := e.DB.Where("id = ?", userID).First(&user).Error
	if err != nil {
		return nil, fmt.Errorf("%w: owner missing", apperr.ErrNotFound)
	}

	return &user, nil
}
