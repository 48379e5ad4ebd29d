package model

// Folder rows form a forest: ParentID is nil for root-level folders and every
// ancestor shares the folder's owner. Duplicate names under one parent are
// allowed, disambiguation is by ID.
type Folder struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID   string `gorm:"index;not null" json:"-"`
	Name     string `gorm:"not null" json:"name"`
	ParentID *uint  `gorm:"index" json:"parent_id,omitempty"`

	CreatedAt int64 `gorm:"not null" json:"created_at"`

	Files      []File   `gorm:"foreignKey:FolderID;constraint:OnDelete:CASCADE" json:"-"`
	Subfolders []Folder `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
}
