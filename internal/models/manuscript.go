// internal/models/manuscript.go
package models

import (
	"github.com/google/uuid"
)

type Manuscript struct {
	BaseModel
	OwnerID       uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;index"`
	Title         string    `json:"title" gorm:"size:255;not null"`
	Description   string    `json:"description" gorm:"type:text"`
	Shelfmark     string    `json:"shelfmark" gorm:"size:100;index"`
	Period        string    `json:"period" gorm:"size:100"`
	Restricted    bool      `json:"restricted" gorm:"default:true"`
	ViewCount     int64     `json:"view_count" gorm:"default:0"`
	DownloadCount int64     `json:"download_count" gorm:"default:0"`

	// Relationships
	Owner User            `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Files []EncryptedFile `json:"files,omitempty" gorm:"foreignKey:ManuscriptID"`
}

// EncryptedFile describes one at-rest encrypted page scan or facsimile.
// The checksum is a SHA-256 digest over the plaintext, verified on every
// decrypt. Rows are created at ingest and read-only afterwards.
type EncryptedFile struct {
	BaseModel
	ManuscriptID uuid.UUID `json:"manuscript_id" gorm:"type:uuid;not null;uniqueIndex:idx_files_manuscript_position"`
	Position     int       `json:"position" gorm:"not null;uniqueIndex:idx_files_manuscript_position"`
	FileType     FileType  `json:"file_type" gorm:"type:varchar(10);not null"`
	OriginalName string    `json:"original_name" gorm:"size:255;not null"`
	MimeType     string    `json:"mime_type" gorm:"size:100;not null"`
	Size         int64     `json:"size" gorm:"not null"`
	Checksum     string    `json:"checksum" gorm:"size:64;not null"`
	StorageKey   string    `json:"-" gorm:"size:512;not null"`

	// Relationships
	Manuscript Manuscript `json:"manuscript,omitempty" gorm:"foreignKey:ManuscriptID"`
}
