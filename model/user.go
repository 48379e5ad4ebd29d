// Package model defines database models
package model

type User struct {
	ID           string `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Role         string `gorm:"default:user" json:"role"`

	// Salt for the password -> master key derivation, and the master key
	// itself sealed under the process metadata key. Sealing it at
	// registration is what lets share recipients decrypt the owner's blobs
	// without the owner's password being present.
	KeySalt   []byte `json:"-"`
	SealedKey string `json:"-"`

	CreatedAt int64 `gorm:"not null" json:"created_at"`

	Stats   Stats    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Files   []File   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Folders []Folder `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
