package quota

import (
	"errors"
	"sync"
	"testing"

	"relayum/file-api/model"
	"relayum/file-api/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestAccountant(t *testing.T, base int64) *Accountant {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// In-memory sqlite exists per connection
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Stats{}, &model.File{}))

	require.NoError(t, db.Create(&model.User{
		ID:           "u1",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "x",
		Stats:        model.Stats{UserID: "u1"},
	}).Error)

	return &Accountant{DB: db, Base: base}
}

func used(t *testing.T, a *Accountant) int64 {
	t.Helper()

	var stats model.Stats
	require.NoError(t, a.DB.Where("user_id = ?", "u1").First(&stats).Error)
	return stats.UsedBytes
}

func TestReserveCommit(t *testing.T) {
	a := newTestAccountant(t, 1000)

	res, err := a.Reserve("u1", 400)
	require.NoError(t, err)
	assert.Equal(t, int64(400), used(t, a))

	// Settle at the on-disk size, a bit above the declared one
	require.NoError(t, a.Commit(res, 468))
	assert.Equal(t, int64(468), used(t, a))

	// Commit is idempotent
	require.NoError(t, a.Commit(res, 468))
	assert.Equal(t, int64(468), used(t, a))
}

// Concurrent reservations by one user must serialize on the ledger row:
// however the attempts interleave, the committed total never exceeds the
// quota.
func TestReserveConcurrent(t *testing.T) {
	a := newTestAccountant(t, 1000)

	const (
		workers = 12
		chunk   = 200
	)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			res, err := a.Reserve("u1", chunk)
			if err != nil {
				var q *apperr.QuotaExceeded
				assert.True(t, errors.As(err, &q))
				return
			}

			if !assert.NoError(t, a.Commit(res, chunk)) {
				return
			}

			mu.Lock()
			granted++
			mu.Unlock()
		}()
	}

	wg.Wait()

	assert.Equal(t, 5, granted)
	assert.Equal(t, int64(5*chunk), used(t, a))
}

func TestReserveExceeded(t *testing.T) {
	a := newTestAccountant(t, 1000)

	_, err := a.Reserve("u1", 600)
	require.NoError(t, err)

	_, err = a.Reserve("u1", 500)
	require.Error(t, err)

	var q *apperr.QuotaExceeded
	require.True(t, errors.As(err, &q))
	assert.Equal(t, int64(600), q.UsedBytes)
	assert.Equal(t, int64(1000), q.QuotaBytes)
	assert.Equal(t, int64(500), q.Requested)
	assert.Equal(t, int64(400), q.Available())

	// The failed reservation must not have touched the ledger
	assert.Equal(t, int64(600), used(t, a))
}

func TestRollback(t *testing.T) {
	a := newTestAccountant(t, 1000)

	res, err := a.Reserve("u1", 300)
	require.NoError(t, err)

	require.NoError(t, a.Rollback(res))
	assert.Equal(t, int64(0), used(t, a))

	// Rollback is idempotent
	require.NoError(t, a.Rollback(res))
	assert.Equal(t, int64(0), used(t, a))
}

func TestReleaseFloorsAtZero(t *testing.T) {
	a := newTestAccountant(t, 1000)

	_, err := a.Reserve("u1", 100)
	require.NoError(t, err)

	require.NoError(t, a.Release("u1", 500))
	assert.Equal(t, int64(0), used(t, a))
}

func TestEffectiveOverride(t *testing.T) {
	a := newTestAccountant(t, 1000)

	override := int64(50)
	require.NoError(t, a.DB.Model(model.Stats{}).
		Where("user_id = ?", "u1").
		Update("quota_override", override).Error)

	_, err := a.Reserve("u1", 100)
	var q *apperr.QuotaExceeded
	require.True(t, errors.As(err, &q))
	assert.Equal(t, int64(50), q.QuotaBytes)

	_, _, hasOverride, err := a.Snapshot("u1")
	require.NoError(t, err)
	assert.True(t, hasOverride)
}

func TestRecompute(t *testing.T) {
	a := newTestAccountant(t, 10_000)

	require.NoError(t, a.DB.Create(&model.File{
		UserID: "u1", FileID: "f1", OriginalName: "a", Size: 100, EncryptedSize: 168,
	}).Error)
	require.NoError(t, a.DB.Create(&model.File{
		UserID: "u1", FileID: "f2", OriginalName: "b", Size: 200, EncryptedSize: 268,
	}).Error)

	// Drift the ledger on purpose
	require.NoError(t, a.DB.Model(model.Stats{}).
		Where("user_id = ?", "u1").
		Update("used_bytes", 9999).Error)

	require.NoError(t, a.Recompute("u1"))
	assert.Equal(t, int64(436), used(t, a))

	// Recompute is a fixed point
	require.NoError(t, a.Recompute("u1"))
	assert.Equal(t, int64(436), used(t, a))
}

func TestReserveUnknownUser(t *testing.T) {
	a := newTestAccountant(t, 1000)

	_, err := a.Reserve("ghost", 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReserveNegative(t *testing.T) {
	a := newTestAccountant(t, 1000)

	_, err := a.Reserve("u1", -5)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSnapshot(t *testing.T) {
	a := newTestAccountant(t, 1000)

	_, err := a.Reserve("u1", 250)
	require.NoError(t, err)

	usedB, limit, override, err := a.Snapshot("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(250), usedB)
	assert.Equal(t, int64(1000), limit)
	assert.False(t, override)

	_, _, _, err = a.Snapshot("ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
