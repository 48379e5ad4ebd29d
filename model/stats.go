package model

// Stats is the per-user quota ledger. UsedBytes is the authoritative cache
// of the sum of encrypted sizes of the user's live files; Recompute restores
// the invariant if it ever drifts.
type Stats struct {
	UserID    string `gorm:"primaryKey" json:"-"`
	UsedBytes int64  `json:"used_bytes"`

	// Admin overrides; nil means "use the configured base"
	QuotaOverride      *int64 `json:"quota_override,omitempty"`
	ExpirationOverride *int   `json:"expiration_override,omitempty"`

	UploadedFiles  int64 `json:"uploaded_files"`
	TotalDownloads int64 `json:"total_downloads"`
}
