// internal/services/settings_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scriptoria/manuscript-vault/internal/models"
	"github.com/scriptoria/manuscript-vault/internal/utils"
)

// SettingsService owns the watermark settings singleton. Callers read it
// fresh on every delivery; nothing is cached here, so admin changes take
// effect immediately.
type SettingsService struct {
	db *gorm.DB
}

type UpdateWatermarkSettingsRequest struct {
	Enabled          *bool    `json:"enabled"`
	Text             *string  `json:"text" validate:"omitempty,min=1,max=255"`
	FontSize         *int     `json:"font_size" validate:"omitempty,min=6,max=144"`
	Opacity          *float64 `json:"opacity" validate:"omitempty,gt=0,lte=1"`
	Position         *string  `json:"position" validate:"omitempty,watermark_position"`
	Color            *string  `json:"color" validate:"omitempty,hex_color"`
	IncludeUserID    *bool    `json:"include_user_id"`
	IncludeTimestamp *bool    `json:"include_timestamp"`
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

// DefaultWatermarkSettings is the seed configuration used until an admin
// changes it.
func DefaultWatermarkSettings() models.WatermarkSettings {
	return models.WatermarkSettings{
		Enabled:          true,
		Text:             "Restricted archival material",
		FontSize:         18,
		Opacity:          0.3,
		Position:         models.WatermarkPositionDiagonal,
		Color:            "#808080",
		IncludeUserID:    true,
		IncludeTimestamp: true,
	}
}

// Get returns the current settings, creating the default row on first use.
func (s *SettingsService) Get() (models.WatermarkSettings, error) {
	var settings models.WatermarkSettings
	err := s.db.Order("created_at ASC").First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = DefaultWatermarkSettings()
		if err := s.db.Create(&settings).Error; err != nil {
			return settings, fmt.Errorf("failed to create default watermark settings: %w", err)
		}
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("failed to load watermark settings: %w", err)
	}

	return settings, nil
}

// Update applies a partial change from an admin.
func (s *SettingsService) Update(adminID uuid.UUID, req *UpdateWatermarkSettingsRequest) (models.WatermarkSettings, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return models.WatermarkSettings{}, fmt.Errorf("validation failed: %w", err)
	}

	settings, err := s.Get()
	if err != nil {
		return settings, err
	}

	if req.Enabled != nil {
		settings.Enabled = *req.Enabled
	}
	if req.Text != nil {
		settings.Text = *req.Text
	}
	if req.FontSize != nil {
		settings.FontSize = *req.FontSize
	}
	if req.Opacity != nil {
		settings.Opacity = *req.Opacity
	}
	if req.Position != nil {
		settings.Position = models.WatermarkPosition(*req.Position)
	}
	if req.Color != nil {
		settings.Color = *req.Color
	}
	if req.IncludeUserID != nil {
		settings.IncludeUserID = *req.IncludeUserID
	}
	if req.IncludeTimestamp != nil {
		settings.IncludeTimestamp = *req.IncludeTimestamp
	}
	settings.UpdatedBy = &adminID

	if err := s.db.Save(&settings).Error; err != nil {
		return settings, fmt.Errorf("failed to update watermark settings: %w", err)
	}

	return settings, nil
}
