package model

// ShareKind is the tagged view over a share row. Exactly one token/recipient
// column is set per row and Kind() tells callers which, so every code path
// has to handle every kind explicitly.
type ShareKind int

const (
	ShareKindUnknown ShareKind = iota
	ShareKindPrivateToUser
	ShareKindPublic
)

type Share struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	// Exactly one of FileID / FolderID is set
	FileID   *uint `gorm:"index" json:"file_id,omitempty"`
	FolderID *uint `gorm:"index" json:"folder_id,omitempty"`

	SharedBy string `gorm:"index;not null" json:"-"`

	// Exactly one of SharedWith+PrivateToken / PublicToken is set
	SharedWith   *string `gorm:"index" json:"shared_with,omitempty"`
	PrivateToken *string `gorm:"uniqueIndex" json:"-"`
	PublicToken  *string `gorm:"uniqueIndex" json:"-"`

	// Argon2id PHC string, never the plaintext
	PasswordHash *string `json:"-"`

	ExpiresAt *int64 `json:"expires_at,omitempty"`
	IsViewed  bool   `json:"is_viewed"`
	ViewedAt  *int64 `json:"viewed_at,omitempty"`
	Accesses  int64  `json:"accesses"`

	CreatedAt int64 `gorm:"not null" json:"created_at"`
}

func (s *Share) Kind() ShareKind {
	switch {
	case s.SharedWith != nil && s.PrivateToken != nil:
		return ShareKindPrivateToUser
	case s.PublicToken != nil:
		return ShareKindPublic
	default:
		return ShareKindUnknown
	}
}
