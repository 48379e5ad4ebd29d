package model

// Virus scan states a file row can be in. Egress refuses infected files.
const (
	ScanPending  = "pending"
	ScanClean    = "clean"
	ScanInfected = "infected"
	ScanError    = "error"
	ScanSkipped  = "skipped"
)

type File struct {
	ID       uint   `gorm:"primaryKey;autoIncrement;index" json:"id"`
	UserID   string `gorm:"index;not null" json:"-"`
	FolderID *uint  `gorm:"index" json:"folder_id,omitempty"`

	// Opaque 64-hex-char identifier that, together with the owner, locates
	// the blob on disk under users/<owner>/<shard>/<file_id>
	FileID string `gorm:"uniqueIndex;not null" json:"file_id"`

	// Original file name before it became an opaque blob on disk
	OriginalName string `gorm:"not null" json:"name"`
	Mime         string `json:"mime"`

	Size          int64  `json:"size"`           // plaintext bytes
	EncryptedSize int64  `json:"encrypted_size"` // blob size on disk, header included
	Hash          string `json:"hash"`           // SHA-256 hex of the plaintext
	Encrypted     bool   `gorm:"default:true" json:"encrypted"`

	ScanStatus string `gorm:"default:skipped" json:"scan_status"`
	Downloads  int64  `json:"downloads"`

	// Unix second timestamps
	CreatedAt int64  `gorm:"not null" json:"created_at"`
	ExpiresAt *int64 `json:"expires_at,omitempty"`
}
