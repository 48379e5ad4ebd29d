package service

import (
	"fmt"
	"time"

	"relayum/file-api/model"
	"relayum/file-api/pkg/apperr"
	"relayum/file-api/pkg/security"
	"relayum/file-api/pkg/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Resolution reasons. Resolve is a pure function of database state plus
// inputs; RecordAccess is the only mutation.
type ResolveReason int

const (
	ResolveOK ResolveReason = iota
	ResolveNotFound
	ResolveExpired
	ResolvePasswordRequired
	ResolveBadPassword
	ResolveAccessLimitReached
)

type Shares struct {
	DB    *gorm.DB
	Argon *security.ArgonHash
}

func NewShares(db *gorm.DB, argon *security.ArgonHash) *Shares {
	return &Shares{DB: db, Argon: argon}
}

// CreateOpts describes a new share. Exactly one of FileRowID/FolderRowID and
// exactly one of Recipients/Public must be set.
type CreateOpts struct {
	SharedBy    string
	FileRowID   *uint
	FolderRowID *uint
	Recipients  []string // user IDs or usernames for private shares
	Public      bool
	Password    string
	ExpiresAt   *int64
}

// Create validates the request and allocates token rows: one per recipient
// for private shares, a single public-token row otherwise.
func (s *Shares) Create(opts *CreateOpts) ([]model.Share, error) {
	if (opts.FileRowID == nil) == (opts.FolderRowID == nil) {
		return nil, fmt.Errorf("%w: exactly one of file_id and folder_id must be set", apperr.ErrValidation)
	}

	if opts.Public == (len(opts.Recipients) > 0) {
		return nil, fmt.Errorf("%w: share must be public or have recipients, not both", apperr.ErrValidation)
	}

	if opts.ExpiresAt != nil && *opts.ExpiresAt <= time.Now().Unix() {
		return nil, fmt.Errorf("%w: expires_at must lie in the future", apperr.ErrValidation)
	}

	// Verify the shared entity exists and belongs to the sharer
	if opts.FileRowID != nil {
		var file model.File
		err := s.DB.Where("user_id = ? AND id = ?", opts.SharedBy, *opts.FileRowID).First(&file).Error
		if err != nil {
			return nil, fmt.Errorf("%w: file missing", apperr.ErrNotFound)
		}
	} else {
		var folder model.Folder
		err := s.DB.Where("user_id = ? AND id = ?", opts.SharedBy, *opts.FolderRowID).First(&folder).Error
		if err != nil {
			return nil, fmt.Errorf("%w: folder missing", apperr.ErrNotFound)
		}
	}

	var passwordHash *string
	if opts.Password != "" {
		hash, err := s.Argon.GenerateFromPassword(opts.Password)
		if err != nil {
			return nil, fmt.Errorf("%w: hash share password, %v", apperr.ErrInfra, err)
		}

		passwordHash = &hash
	}

	now := time.Now().Unix()
	var rows []model.Share

	if opts.Public {
		token, err := util.GenerateToken(32)
		if err != nil {
			return nil, fmt.Errorf("%w: generate token, %v", apperr.ErrInfra, err)
		}

		rows = append(rows, model.Share{
			FileID:       opts.FileRowID,
			FolderID:     opts.FolderRowID,
			SharedBy:     opts.SharedBy,
			PublicToken:  &token,
			PasswordHash: passwordHash,
			ExpiresAt:    opts.ExpiresAt,
			CreatedAt:    now,
		})
	} else {
		for _, recipient := range opts.Recipients {
			var target model.User
			err := s.DB.Where("id = ? OR username = ?", recipient, recipient).First(&target).Error
			if err != nil {
				return nil, fmt.Errorf("%w: recipient %q missing", apperr.ErrNotFound, recipient)
			}

			if target.ID == opts.SharedBy {
				return nil, fmt.Errorf("%w: cannot share with yourself", apperr.ErrValidation)
			}

			token, err := util.GenerateToken(32)
			if err != nil {
				return nil, fmt.Errorf("%w: generate token, %v", apperr.ErrInfra, err)
			}

			id := target.ID
			rows = append(rows, model.Share{
				FileID:       opts.FileRowID,
				FolderID:     opts.FolderRowID,
				SharedBy:     opts.SharedBy,
				SharedWith:   &id,
				PrivateToken: &token,
				ExpiresAt:    opts.ExpiresAt,
				CreatedAt:    now,
			})
		}
	}

	if err := s.DB.Create(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: insert share rows, %v", apperr.ErrInfra, err)
	}

	Audit(s.DB, &opts.SharedBy, "share.create", fmt.Sprintf("%d rows", len(rows)))
	return rows, nil
}

// Resolve looks a token up and classifies it without mutating anything.
// Password verification is constant-time over the stored argon2id hash, and
// the caller gets the same NotFound shape for missing and expired tokens so
// unauthenticated probing learns nothing extra.
func (s *Shares) Resolve(token, password string) (*model.Share, ResolveReason, error) {
	var share model.Share

	err := s.DB.
		Where("public_token = ? OR private_token = ?", token, token).
		First(&share).
		Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ResolveNotFound, nil
		}

		return nil, ResolveNotFound, fmt.Errorf("%w: lookup share, %v", apperr.ErrInfra, err)
	}

	if share.ExpiresAt != nil && *share.ExpiresAt < time.Now().Unix() {
		return nil, ResolveExpired, nil
	}

	if share.PasswordHash != nil {
		if password == "" {
			return nil, ResolvePasswordRequired, nil
		}

		ok, err := s.Argon.VerifyPasswd(password, *share.PasswordHash)
		if err != nil {
			return nil, ResolveBadPassword, fmt.Errorf("%w: verify share password, %v", apperr.ErrInfra, err)
		}

		if !ok {
			return nil, ResolveBadPassword, nil
		}
	}

	return &share, ResolveOK, nil
}

// RecordAccess bumps the counters after egress authorization succeeded. The
// share row is locked so concurrent accesses serialize.
func (s *Shares) RecordAccess(shareID uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var share model.Share

		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", shareID).
			First(&share).
			Error
		if err != nil {
			return fmt.Errorf("%w: load share, %v", apperr.ErrInfra, err)
		}

		now := time.Now().Unix()

		return tx.
			Model(model.Share{}).
			Where("id = ?", shareID).
			Updates(map[string]any{
				"accesses":  gorm.Expr("accesses + ?", 1),
				"is_viewed": true,
				"viewed_at": now,
			}).
			Error
	})
}

// ListForUser returns shares created by and directed at a user.
func (s *Shares) ListForUser(userID string) (created, received []model.Share, err error) {
	err = s.DB.Where("shared_by = ?", userID).Order("id DESC").Find(&created).Error
	if err != nil {
		return nil, nil, fmt.Errorf("%w: list created shares, %v", apperr.ErrInfra, err)
	}

	err = s.DB.Where("shared_with = ?", userID).Order("id DESC").Find(&received).Error
	if err != nil {
		return nil, nil, fmt.Errorf("%w: list received shares, %v", apperr.ErrInfra, err)
	}

	return created, received, nil
}

// MarkReceivedViewed flags every unviewed share directed at a user. Bounded
// by the rate limiter at the route level.
func (s *Shares) MarkReceivedViewed(userID string) error {
	now := time.Now().Unix()

	return s.DB.
		Model(model.Share{}).
		Where("shared_with = ? AND is_viewed = ?", userID, false).
		Updates(map[string]any{"is_viewed": true, "viewed_at": now}).
		Error
}

// Delete removes a share the user created.
func (s *Shares) Delete(userID string, shareID uint) error {
	res := s.DB.Where("shared_by = ? AND id = ?", userID, shareID).Delete(model.Share{})
	if res.Error != nil {
		return fmt.Errorf("%w: delete share, %v", apperr.ErrInfra, res.Error)
	}

	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: share missing", apperr.ErrNotFound)
	}

	Audit(s.DB, &userID, "share.delete", fmt.Sprintf("%d", shareID))
	return nil
}
