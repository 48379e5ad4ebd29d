package service

import (
	"time"

	"relayum/file-api/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ScanFunc is the opaque virus-scanning integration. It receives a file row
// ID and returns the resulting scan status.
type ScanFunc func(fileRowID uint) (string, error)

// Scanner invokes the post-ingest scan hook with bounded retries. Egress
// refuses files the hook marked infected.
type Scanner struct {
	DB      *gorm.DB
	Fn      ScanFunc
	Retries int

	queue chan uint
}

func NewScanner(db *gorm.DB, fn ScanFunc) *Scanner {
	s := &Scanner{
		DB:      db,
		Fn:      fn,
		Retries: 3,
		queue:   make(chan uint, 256),
	}

	if fn != nil {
		go s.worker()
	}

	return s
}

func (s *Scanner) Enabled() bool {
	return s != nil && s.Fn != nil
}

// Submit queues a file for scanning. Fire-and-forget: a full queue drops the
// job and leaves the row in the pending state.
func (s *Scanner) Submit(fileRowID uint) {
	if !s.Enabled() {
		return
	}

	select {
	case s.queue <- fileRowID:
	default:
		zap.L().Warn("Scan queue full, leaving file pending", zap.Uint("fileRowID", fileRowID))
	}
}

func (s *Scanner) worker() {
	for id := range s.queue {
		status := model.ScanError

		for attempt := 0; attempt < s.Retries; attempt++ {
			result, err := s.Fn(id)
			if err == nil {
				status = result
				break
			}

			zap.L().Warn("Scan attempt failed", zap.Uint("fileRowID", id), zap.Int("attempt", attempt+1), zap.Error(err))
			time.Sleep(time.Second << attempt)
		}

		err := s.DB.
			Model(model.File{}).
			Where("id = ?", id).
			Update("scan_status", status).
			Error
		if err != nil {
			zap.L().Error("Failed to record scan status", zap.Uint("fileRowID", id), zap.Error(err))
		}
	}
}
