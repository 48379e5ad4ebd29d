package model

// AuditEvent rows are append-only; every mutating operation in the core
// writes one inside its transaction.
type AuditEvent struct {
	ID        string  `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    *string `gorm:"index" json:"user_id,omitempty"`
	Action    string  `gorm:"not null" json:"action"`
	Target    string  `json:"target"`
	CreatedAt int64   `gorm:"not null" json:"created_at"`
}

type LoginEvent struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    *string `gorm:"index" json:"user_id,omitempty"`
	IP        string  `gorm:"index" json:"ip"`
	Success   bool    `json:"success"`
	CreatedAt int64   `gorm:"not null" json:"created_at"`
}

type IPBan struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	IP        string `gorm:"uniqueIndex;not null" json:"ip"`
	Reason    string `json:"reason"`
	ExpiresAt *int64 `json:"expires_at,omitempty"`
	CreatedAt int64  `gorm:"not null" json:"created_at"`
}
