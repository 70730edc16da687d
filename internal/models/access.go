// internal/models/access.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// AccessRequest is filed by a reader and resolved exactly once by a
// reviewer, an admin or the manuscript owner. Resolved requests are
// immutable; a new request must be filed to ask again.
type AccessRequest struct {
	BaseModel
	RequesterID    uuid.UUID     `json:"requester_id" gorm:"type:uuid;not null;index"`
	ManuscriptID   uuid.UUID     `json:"manuscript_id" gorm:"type:uuid;not null;index"`
	RequestedLevel AccessLevel   `json:"requested_level" gorm:"type:varchar(20);not null"`
	Purpose        string        `json:"purpose" gorm:"type:text;not null"`
	Institution    string        `json:"institution" gorm:"size:255"`
	RequestedDays  *int          `json:"requested_days"`
	Status         RequestStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	ReviewerID     *uuid.UUID    `json:"reviewer_id" gorm:"type:uuid"`
	ReviewNotes    string        `json:"review_notes,omitempty" gorm:"type:text"`
	ApprovedLevel  *AccessLevel  `json:"approved_level,omitempty" gorm:"type:varchar(20)"`
	ApprovedDays   *int          `json:"approved_days,omitempty"`
	ResolvedAt     *time.Time    `json:"resolved_at"`

	// Relationships
	Requester  User       `json:"requester,omitempty" gorm:"foreignKey:RequesterID"`
	Manuscript Manuscript `json:"manuscript,omitempty" gorm:"foreignKey:ManuscriptID"`
	Reviewer   *User      `json:"reviewer,omitempty" gorm:"foreignKey:ReviewerID"`
}

// AccessGrant is the sole source of truth for non-owner, non-privileged
// access. At most one active grant exists per (manuscript, grantee); the
// pair is guarded by a partial unique index. The watermark id is minted at
// grant time and never changes for the grant's lifetime.
type AccessGrant struct {
	BaseModel
	ManuscriptID   uuid.UUID   `json:"manuscript_id" gorm:"type:uuid;not null;index:idx_grants_manuscript_grantee"`
	GranteeID      uuid.UUID   `json:"grantee_id" gorm:"type:uuid;not null;index:idx_grants_manuscript_grantee"`
	Level          AccessLevel `json:"level" gorm:"type:varchar(20);not null"`
	GrantedBy      uuid.UUID   `json:"granted_by" gorm:"type:uuid;not null"`
	GrantedAt      time.Time   `json:"granted_at" gorm:"not null"`
	ExpiresAt      *time.Time  `json:"expires_at"`
	IsActive       bool        `json:"is_active" gorm:"default:true;index"`
	RevokedAt      *time.Time  `json:"revoked_at"`
	RevokedBy      *uuid.UUID  `json:"revoked_by" gorm:"type:uuid"`
	RevokeReason   string      `json:"revoke_reason,omitempty" gorm:"type:text"`
	WatermarkID    string      `json:"watermark_id" gorm:"size:64;uniqueIndex;not null"`
	ViewCount      int64       `json:"view_count" gorm:"default:0"`
	DownloadCount  int64       `json:"download_count" gorm:"default:0"`
	LastAccessedAt *time.Time  `json:"last_accessed_at"`

	// Relationships
	Manuscript Manuscript `json:"manuscript,omitempty" gorm:"foreignKey:ManuscriptID"`
	Grantee    User       `json:"grantee,omitempty" gorm:"foreignKey:GranteeID"`
	Granter    User       `json:"granter,omitempty" gorm:"foreignKey:GrantedBy"`
}

// Expired reports whether the grant's time bound has passed.
func (g *AccessGrant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && g.ExpiresAt.Before(now)
}

// WatermarkSettings is a singleton row read fresh on every delivery so
// that admin changes take effect immediately.
type WatermarkSettings struct {
	BaseModel
	Enabled          bool              `json:"enabled" gorm:"default:true"`
	Text             string            `json:"text" gorm:"size:255;not null"`
	FontSize         int               `json:"font_size" gorm:"default:18"`
	Opacity          float64           `json:"opacity" gorm:"type:decimal(3,2);default:0.3"`
	Position         WatermarkPosition `json:"position" gorm:"type:varchar(20);default:'diagonal'"`
	Color            string            `json:"color" gorm:"size:7;default:'#808080'"`
	IncludeUserID    bool              `json:"include_user_id" gorm:"default:true"`
	IncludeTimestamp bool              `json:"include_timestamp" gorm:"default:true"`
	UpdatedBy        *uuid.UUID        `json:"updated_by" gorm:"type:uuid"`
}
