package service

import (
	"time"

	"relayum/file-api/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Audit appends one audit row. Failures are logged, never propagated: audit
// must not take down the mutation it describes.
func Audit(db *gorm.DB, userID *string, action, target string) {
	err := db.Create(&model.AuditEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		Target:    target,
		CreatedAt: time.Now().Unix(),
	}).Error
	if err != nil {
		zap.L().Error("Failed to write audit event", zap.String("action", action), zap.Error(err))
	}
}
