package service

import (
	"context"
	"fmt"
	"time"

	"relayum/file-api/internal/storage"
	"relayum/file-api/model"
	"relayum/file-api/pkg/apperr"
	"relayum/file-api/pkg/security"
	"relayum/file-api/pkg/util"

	"github.com/spf13/viper"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Anonymous implements account-less, time-boxed uploads. The token is both
// the storage namespace and the access capability; blobs are keyed off the
// process metadata key since there is no user to derive from.
type Anonymous struct {
	DB    *gorm.DB
	Store *storage.Store
	Argon *security.ArgonHash

	MetadataKey    []byte
	MaxFileSize    int64
	ExpirationDays int
	MaxAccesses    int64
}

func NewAnonymous(db *gorm.DB, store *storage.Store, argon *security.ArgonHash, metadataKey []byte) *Anonymous {
	return &Anonymous{
		DB:             db,
		Store:          store,
		Argon:          argon,
		MetadataKey:    metadataKey,
		MaxFileSize:    viper.GetInt64("anonymous.max_file_size"),
		ExpirationDays: viper.GetInt("anonymous.expiration_days"),
		MaxAccesses:    viper.GetInt64("anonymous.max_accesses"),
	}
}

// Upload creates the tenancy and ingests the batch. Expiry is mandatory and
// fixed by configuration; the token carries both storage and access rights.
func (a *Anonymous) Upload(ctx context.Context, uploads []*Upload, password string) (*model.AnonymousShare, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: no files provided", apperr.ErrValidation)
	}

	for _, up := range uploads {
		if up.DeclaredSize > a.MaxFileSize {
			return nil, fmt.Errorf("%w: file exceeds anonymous size limit", apperr.ErrTooLarge)
		}
	}

	token, err := util.GenerateToken(32)
	if err != nil {
		return nil, fmt.Errorf("%w: generate token, %v", apperr.ErrInfra, err)
	}

	var passwordHash *string
	if password != "" {
		hash, err := a.Argon.GenerateFromPassword(password)
		if err != nil {
			return nil, fmt.Errorf("%w: hash password, %v", apperr.ErrInfra, err)
		}

		passwordHash = &hash
	}

	now := time.Now()
	share := &model.AnonymousShare{
		Token:        token,
		PasswordHash: passwordHash,
		ExpiresAt:    now.AddDate(0, 0, a.ExpirationDays).Unix(),
		MaxAccesses:  a.MaxAccesses,
		CreatedAt:    now.Unix(),
	}

	if err := a.DB.Create(share).Error; err != nil {
		return nil, fmt.Errorf("%w: insert anonymous share, %v", apperr.ErrInfra, err)
	}

	for _, up := range uploads {
		put, err := a.Store.PutAnonymous(ctx, token, up.Src, up.Filename, up.Mime, a.MetadataKey)
		if err != nil {
			// Partial tenancy: drop everything written so far
			a.purge(share)
			return nil, err
		}

		row := &model.AnonymousFile{
			ShareID:       share.ID,
			FileID:        put.FileID,
			OriginalName:  up.Filename,
			Mime:          up.Mime,
			Size:          put.Size,
			EncryptedSize: put.EncryptedSize,
			Hash:          put.Hash,
			CreatedAt:     now.Unix(),
		}

		if err := a.DB.Create(row).Error; err != nil {
			a.purge(share)
			return nil, fmt.Errorf("%w: insert anonymous file, %v", apperr.ErrInfra, err)
		}

		share.Files = append(share.Files, *row)
	}

	Audit(a.DB, nil, "anonymous.upload", fmt.Sprintf("%d files", len(uploads)))
	return share, nil
}

// Resolve classifies a token without mutating counters.
func (a *Anonymous) Resolve(token, password string) (*model.AnonymousShare, ResolveReason, error) {
	var share model.AnonymousShare

	err := a.DB.Preload("Files").Where("token = ?", token).First(&share).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ResolveNotFound, nil
		}

		return nil, ResolveNotFound, fmt.Errorf("%w: lookup anonymous share, %v", apperr.ErrInfra, err)
	}

	if share.ExpiresAt < time.Now().Unix() {
		return nil, ResolveExpired, nil
	}

	if share.MaxAccesses > 0 && share.Accesses >= share.MaxAccesses {
		return nil, ResolveAccessLimitReached, nil
	}

	if share.PasswordHash != nil {
		if password == "" {
			return nil, ResolvePasswordRequired, nil
		}

		ok, err := a.Argon.VerifyPasswd(password, *share.PasswordHash)
		if err != nil {
			return nil, ResolveBadPassword, fmt.Errorf("%w: verify password, %v", apperr.ErrInfra, err)
		}

		if !ok {
			return nil, ResolveBadPassword, nil
		}
	}

	return &share, ResolveOK, nil
}

// RecordAccess bumps the access counter under a row lock so the max-access
// cap holds under concurrency.
func (a *Anonymous) RecordAccess(shareID uint) error {
	return a.DB.Transaction(func(tx *gorm.DB) error {
		var share model.AnonymousShare

		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", shareID).
			First(&share).
			Error
		if err != nil {
			return fmt.Errorf("%w: load anonymous share, %v", apperr.ErrInfra, err)
		}

		if share.MaxAccesses > 0 && share.Accesses >= share.MaxAccesses {
			return fmt.Errorf("%w: access limit reached", apperr.ErrGone)
		}

		return tx.
			Model(model.AnonymousShare{}).
			Where("id = ?", shareID).
			Update("accesses", gorm.Expr("accesses + ?", 1)).
			Error
	})
}

// Open returns a verified decrypt stream for one file of the tenancy.
func (a *Anonymous) Open(share *model.AnonymousShare, fileRowID uint) (*storage.Blob, *model.AnonymousFile, error) {
	for i := range share.Files {
		if share.Files[i].ID == fileRowID {
			blob, err := a.Store.StreamGetAnonymous(share.Token, share.Files[i].FileID, a.MetadataKey)
			if err != nil {
				return nil, nil, err
			}

			return blob, &share.Files[i], nil
		}
	}

	return nil, nil, fmt.Errorf("%w: file not part of share", apperr.ErrNotFound)
}

// PurgeExpired deletes every expired tenancy: blob tree first, rows after.
// Called by the janitor.
func (a *Anonymous) PurgeExpired() (int, error) {
	var expired []model.AnonymousShare

	err := a.DB.Where("expires_at < ?", time.Now().Unix()).Find(&expired).Error
	if err != nil {
		return 0, fmt.Errorf("%w: list expired tenancies, %v", apperr.ErrInfra, err)
	}

	for i := range expired {
		a.purge(&expired[i])
	}

	return len(expired), nil
}

func (a *Anonymous) purge(share *model.AnonymousShare) {
	if err := a.Store.DeleteAnonymousTenancy(share.Token); err != nil {
		return
	}

	a.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("share_id = ?", share.ID).Delete(model.AnonymousFile{}).Error; err != nil {
			return err
		}

		return tx.Delete(model.AnonymousShare{}, share.ID).Error
	})

	Audit(a.DB, nil, "anonymous.purge", share.Token[:8])
}
