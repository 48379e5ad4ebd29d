// Package quota keeps per-user disk accounting coherent under concurrent
// uploads: every mutation of used_bytes happens under a row lock inside a
// transaction, so two uploads by the same user always see each other's
// reservation.
package quota

import (
	"fmt"

	"relayum/file-api/model"
	"relayum/file-api/pkg/apperr"

	"github.com/spf13/viper"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Accountant struct {
	DB   *gorm.DB
	Base int64
}

func New(db *gorm.DB) *Accountant {
	return &Accountant{
		DB:   db,
		Base: viper.GetInt64("quota.base"),
	}
}

// Reservation is an atomic promise of Bytes against a user's quota. Commit
// after a successful ingest, Rollback after a failed one. Both are
// idempotent.
type Reservation struct {
	UserID string
	Bytes  int64

	settled bool
}

// Effective returns the quota that actually applies: the admin override when
// present, the configured base otherwise.
func (a *Accountant) Effective(stats *model.Stats) int64 {
	if stats.QuotaOverride != nil {
		return *stats.QuotaOverride
	}

	return a.Base
}

// Reserve locks the user's ledger row, checks used+n against the effective
// quota and bumps used_bytes. Failure carries the numbers the caller needs
// for a 413 body.
func (a *Accountant) Reserve(userID string, n int64) (*Reservation, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative reservation", apperr.ErrValidation)
	}

	err := a.DB.Transaction(func(tx *gorm.DB) error {
		var stats model.Stats

		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&stats).
			Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: no quota ledger for user", apperr.ErrNotFound)
			}

			return fmt.Errorf("%w: load quota ledger, %v", apperr.ErrInfra, err)
		}

		limit := a.Effective(&stats)
		if stats.UsedBytes+n > limit {
			return &apperr.QuotaExceeded{
				UsedBytes:  stats.UsedBytes,
				QuotaBytes: limit,
				Requested:  n,
			}
		}

		return tx.
			Model(model.Stats{}).
			Where("user_id = ?", userID).
			Update("used_bytes", gorm.Expr("used_bytes + ?", n)).
			Error
	})
	if err != nil {
		return nil, err
	}

	return &Reservation{UserID: userID, Bytes: n}, nil
}

// Commit settles a reservation at its actual size. The encrypted blob is
// bigger than the declared plaintext by exactly the container header, so the
// delta is applied under the same row lock Reserve took.
func (a *Accountant) Commit(r *Reservation, actual int64) error {
	if r.settled {
		return nil
	}

	delta := actual - r.Bytes
	if delta != 0 {
		if err := a.apply(r.UserID, delta); err != nil {
			return err
		}
	}

	r.settled = true
	return nil
}

// Rollback releases a failed reservation, returning actual bytes (what was
// really written before the failure, usually the full reservation).
func (a *Accountant) Rollback(r *Reservation) error {
	if r.settled {
		return nil
	}

	if err := a.apply(r.UserID, -r.Bytes); err != nil {
		return err
	}

	r.settled = true
	return nil
}

// Release subtracts n from a user's ledger after a delete.
func (a *Accountant) Release(userID string, n int64) error {
	return a.apply(userID, -n)
}

// Recompute restores the ledger invariant: used_bytes becomes the sum of
// encrypted sizes of the user's live files.
func (a *Accountant) Recompute(userID string) error {
	return a.DB.Transaction(func(tx *gorm.DB) error {
		var stats model.Stats

		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&stats).
			Error
		if err != nil {
			return fmt.Errorf("%w: load quota ledger, %v", apperr.ErrInfra, err)
		}

		var total int64
		err = tx.
			Model(model.File{}).
			Where("user_id = ?", userID).
			Select("COALESCE(SUM(encrypted_size), 0)").
			Scan(&total).
			Error
		if err != nil {
			return fmt.Errorf("%w: sum file sizes, %v", apperr.ErrInfra, err)
		}

		return tx.
			Model(model.Stats{}).
			Where("user_id = ?", userID).
			Update("used_bytes", total).
			Error
	})
}

// Snapshot reads the ledger for the quota endpoint and 413 bodies.
func (a *Accountant) Snapshot(userID string) (used, limit int64, override bool, err error) {
	var stats model.Stats

	err = a.DB.Where("user_id = ?", userID).First(&stats).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, 0, false, fmt.Errorf("%w: no quota ledger for user", apperr.ErrNotFound)
		}

		return 0, 0, false, fmt.Errorf("%w: load quota ledger, %v", apperr.ErrInfra, err)
	}

	return stats.UsedBytes, a.Effective(&stats), stats.QuotaOverride != nil, nil
}

func (a *Accountant) apply(userID string, delta int64) error {
	return a.DB.Transaction(func(tx *gorm.DB) error {
		var stats model.Stats

		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&stats).
			Error
		if err != nil {
			return fmt.Errorf("%w: load quota ledger, %v", apperr.ErrInfra, err)
		}

		next := stats.UsedBytes + delta
		if next < 0 {
			next = 0
		}

		return tx.
			Model(model.Stats{}).
			Where("user_id = ?", userID).
			Update("used_bytes", next).
			Error
	})
}
