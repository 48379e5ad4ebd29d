package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"relayum/file-api/internal/quota"
	"relayum/file-api/internal/storage"
	"relayum/file-api/model"
	"relayum/file-api/pkg/apperr"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ingestor runs the per-file upload pipeline: authorize folder, reserve
// quota, stream-encrypt to disk, commit the row, hand the file to the scan
// hook. A failure anywhere before the row commit unlinks the blob and rolls
// the reservation back.
type Ingestor struct {
	DB      *gorm.DB
	Store   *storage.Store
	Quota   *quota.Accountant
	Folders *Folders
	Scanner *Scanner

	MetadataKey    []byte
	ExpirationDays int
}

func NewIngestor(db *gorm.DB, store *storage.Store, acct *quota.Accountant, folders *Folders, scanner *Scanner, metadataKey []byte) *Ingestor {
	return &Ingestor{
		DB:             db,
		Store:          store,
		Quota:          acct,
		Folders:        folders,
		Scanner:        scanner,
		MetadataKey:    metadataKey,
		ExpirationDays: viper.GetInt("quota.expiration_days"),
	}
}

// Upload describes one file of an ingest batch.
type Upload struct {
	Filename     string
	Mime         string
	DeclaredSize int64
	RelPath      string // optional folder-upload hint
	Src          io.Reader
}

// IngestOne runs the full pipeline for a single upload and returns the
// committed file row.
func (ing *Ingestor) IngestOne(ctx context.Context, user *model.User, up *Upload, folderID *uint) (*model.File, error) {
	if up.Filename == "" {
		return nil, fmt.Errorf("%w: filename is empty", apperr.ErrValidation)
	}

	if up.DeclaredSize < 0 {
		return nil, fmt.Errorf("%w: negative declared size", apperr.ErrValidation)
	}

	// 1. Authorize the destination folder, creating relative-path folders
	// for folder uploads
	target := folderID
	if target != nil {
		if _, err := ing.Folders.owned(ing.DB, user.ID, *target); err != nil {
			return nil, err
		}
	}

	if up.RelPath != "" {
		var err error
		target, err = ing.Folders.EnsurePath(ing.DB, user.ID, target, up.RelPath)
		if err != nil {
			return nil, err
		}
	}

	// 2. Reserve quota for the declared size before a single byte lands
	res, err := ing.Quota.Reserve(user.ID, up.DeclaredSize)
	if err != nil {
		return nil, err
	}

	masterKey, err := UnsealUserKey(user, ing.MetadataKey)
	if err != nil {
		ing.rollback(res)
		return nil, err
	}

	// 3. Stream-encrypt to disk
	put, err := ing.Store.Put(ctx, user.ID, up.Src, up.Filename, up.Mime, masterKey)
	if err != nil {
		ing.rollback(res)
		return nil, err
	}

	scanStatus := model.ScanSkipped
	if ing.Scanner.Enabled() {
		scanStatus = model.ScanPending
	}

	file := &model.File{
		UserID:        user.ID,
		FolderID:      target,
		FileID:        put.FileID,
		OriginalName:  up.Filename,
		Mime:          up.Mime,
		Size:          put.Size,
		EncryptedSize: put.EncryptedSize,
		Hash:          put.Hash,
		Encrypted:     true,
		ScanStatus:    scanStatus,
		CreatedAt:     time.Now().Unix(),
		ExpiresAt:     ing.expiry(user.ID),
	}

	// 4. Commit the row; only now does the file become visible to listings
	err = ing.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(file).Error; err != nil {
			return fmt.Errorf("%w: insert file row, %v", apperr.ErrInfra, err)
		}

		return tx.
			Model(model.Stats{}).
			Where("user_id = ?", user.ID).
			Update("uploaded_files", gorm.Expr("uploaded_files + ?", 1)).
			Error
	})
	if err != nil {
		if derr := ing.Store.Delete(user.ID, put.FileID); derr != nil && !errors.Is(derr, apperr.ErrNotFound) {
			zap.L().Error("Failed to unlink blob after row insert failure", zap.Error(derr))
		}

		ing.rollback(res)
		return nil, err
	}

	// 5. Settle the reservation at the real on-disk size
	if err := ing.Quota.Commit(res, put.EncryptedSize); err != nil {
		zap.L().Error("Failed to settle quota reservation", zap.String("userID", user.ID), zap.Error(err))
	}

	Audit(ing.DB, &user.ID, "file.upload", put.FileID)

	// 6. Fire-and-forget scan hook
	ing.Scanner.Submit(file.ID)

	return file, nil
}

// DeleteFile removes a file row, its shares and its blob, and releases the
// quota. Deleting an already-deleted file reports NotFound with no side
// effects.
func (ing *Ingestor) DeleteFile(userID string, fileRowID uint) error {
	var file model.File

	err := ing.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND id = ?", userID, fileRowID).First(&file).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: file missing", apperr.ErrNotFound)
			}

			return fmt.Errorf("%w: load file, %v", apperr.ErrInfra, err)
		}

		if err := tx.Where("file_id = ?", file.ID).Delete(model.Share{}).Error; err != nil {
			return fmt.Errorf("%w: delete file shares, %v", apperr.ErrInfra, err)
		}

		if err := tx.Delete(model.File{}, file.ID).Error; err != nil {
			return fmt.Errorf("%w: delete file row, %v", apperr.ErrInfra, err)
		}

		return tx.
			Model(model.Stats{}).
			Where("user_id = ? AND uploaded_files > 0", userID).
			Update("uploaded_files", gorm.Expr("uploaded_files - ?", 1)).
			Error
	})
	if err != nil {
		return err
	}

	if err := ing.Store.Delete(userID, file.FileID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}

	if err := ing.Quota.Release(userID, file.EncryptedSize); err != nil {
		return err
	}

	Audit(ing.DB, &userID, "file.delete", file.FileID)
	return nil
}

func (ing *Ingestor) expiry(userID string) *int64 {
	days := ing.ExpirationDays

	var stats model.Stats
	if err := ing.DB.Where("user_id = ?", userID).First(&stats).Error; err == nil {
		if stats.ExpirationOverride != nil {
			days = *stats.ExpirationOverride
		}
	}

	if days <= 0 {
		return nil
	}

	t := time.Now().AddDate(0, 0, days).Unix()
	return &t
}

func (ing *Ingestor) rollback(res *quota.Reservation) {
	if err := ing.Quota.Rollback(res); err != nil {
		zap.L().Error("Failed to roll back quota reservation", zap.Error(err))
	}
}
