package service

import (
	"time"

	"relayum/file-api/model"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Janitor runs the periodic cleanup passes: expired anonymous tenancies and
// expired user files.
type Janitor struct {
	DB   *gorm.DB
	Anon *Anonymous
	Ing  *Ingestor

	cron *cron.Cron
}

func NewJanitor(db *gorm.DB, anon *Anonymous, ing *Ingestor) *Janitor {
	return &Janitor{
		DB:   db,
		Anon: anon,
		Ing:  ing,
		cron: cron.New(),
	}
}

// Start schedules both passes hourly. Safe to call once at startup.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc("@hourly", j.runAnonymous); err != nil {
		return err
	}

	if _, err := j.cron.AddFunc("@hourly", j.runExpiredFiles); err != nil {
		return err
	}

	j.cron.Start()
	zap.L().Debug("Janitor attached", zap.String("cadence", "@hourly"))
	return nil
}

func (j *Janitor) Stop() {
	j.cron.Stop()
}

func (j *Janitor) runAnonymous() {
	n, err := j.Anon.PurgeExpired()
	if err != nil {
		zap.L().Error("Anonymous purge pass failed", zap.Error(err))
		return
	}

	if n > 0 {
		zap.L().Info("Purged expired anonymous tenancies", zap.Int("count", n))
	}
}

func (j *Janitor) runExpiredFiles() {
	type expiredRow struct {
		ID     uint
		UserID string
	}

	var rows []expiredRow

	err := j.DB.
		Model(model.File{}).
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now().Unix()).
		Select("id, user_id").
		Find(&rows).
		Error
	if err != nil {
		zap.L().Error("Failed to query expired files", zap.Error(err))
		return
	}

	for _, row := range rows {
		if err := j.Ing.DeleteFile(row.UserID, row.ID); err != nil {
			zap.L().Error("Failed to delete expired file", zap.Uint("fileRowID", row.ID), zap.Error(err))
		}
	}

	if len(rows) > 0 {
		zap.L().Info("Deleted expired files", zap.Int("count", len(rows)))
	}
}
