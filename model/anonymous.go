package model

// AnonymousShare is a time-boxed, account-less capability. Blobs live in an
// anonymous namespace keyed by the token and are purged with the row.
type AnonymousShare struct {
	ID    uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Token string `gorm:"uniqueIndex;not null" json:"-"`

	PasswordHash *string `json:"-"`

	ExpiresAt   int64 `gorm:"not null" json:"expires_at"` // mandatory, unlike user shares
	MaxAccesses int64 `json:"max_accesses"`
	Accesses    int64 `json:"accesses"`

	CreatedAt int64 `gorm:"not null" json:"created_at"`

	Files []AnonymousFile `gorm:"foreignKey:ShareID;constraint:OnDelete:CASCADE" json:"files"`
}

type AnonymousFile struct {
	ID      uint `gorm:"primaryKey;autoIncrement" json:"id"`
	ShareID uint `gorm:"index;not null" json:"-"`

	FileID        string `gorm:"uniqueIndex;not null" json:"file_id"`
	OriginalName  string `gorm:"not null" json:"name"`
	Mime          string `json:"mime"`
	Size          int64  `json:"size"`
	EncryptedSize int64  `json:"encrypted_size"`
	Hash          string `json:"hash"`

	CreatedAt int64 `gorm:"not null" json:"created_at"`
}
