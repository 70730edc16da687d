// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserRole string

const (
	UserRoleReader   UserRole = "reader"
	UserRoleReviewer UserRole = "reviewer"
	UserRoleAdmin    UserRole = "admin"
)

// Privileged reports whether the role bypasses grant checks for content
// inspection purposes.
func (r UserRole) Privileged() bool {
	return r == UserRoleReviewer || r == UserRoleAdmin
}

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// AccessLevel is a totally ordered permission tier.
type AccessLevel string

const (
	AccessLevelViewMetadata AccessLevel = "view_metadata"
	AccessLevelViewContent  AccessLevel = "view_content"
	AccessLevelDownload     AccessLevel = "download"
)

var accessLevelRank = map[AccessLevel]int{
	AccessLevelViewMetadata: 1,
	AccessLevelViewContent:  2,
	AccessLevelDownload:     3,
}

func (l AccessLevel) Valid() bool {
	_, ok := accessLevelRank[l]
	return ok
}

// Covers reports whether a grant at level l satisfies the required level.
// A download grant implies view_content and view_metadata.
func (l AccessLevel) Covers(required AccessLevel) bool {
	return accessLevelRank[l] >= accessLevelRank[required]
}

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

type FileType string

const (
	FileTypePDF   FileType = "pdf"
	FileTypeImage FileType = "image"
	FileTypeOther FileType = "other"
)

type WatermarkPosition string

const (
	WatermarkPositionDiagonal WatermarkPosition = "diagonal"
	WatermarkPositionCenter   WatermarkPosition = "center"
	WatermarkPositionFooter   WatermarkPosition = "footer"
	WatermarkPositionTiled    WatermarkPosition = "tiled"
)

func (p WatermarkPosition) Valid() bool {
	switch p {
	case WatermarkPositionDiagonal, WatermarkPositionCenter, WatermarkPositionFooter, WatermarkPositionTiled:
		return true
	}
	return false
}
