// internal/services/delivery_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/scriptoria/manuscript-vault/internal/apperrors"
	"github.com/scriptoria/manuscript-vault/internal/models"
	"github.com/scriptoria/manuscript-vault/internal/utils"
	"github.com/scriptoria/manuscript-vault/internal/vault"
	"github.com/scriptoria/manuscript-vault/internal/watermark"
)

// Watermarker marks a decrypted file for one recipient.
type Watermarker interface {
	Apply(fileType models.FileType, data []byte, ctx watermark.Context) ([]byte, error)
}

// DeliveryService is the pipeline behind every view and download:
// authorize, fetch ciphertext, decrypt and verify, watermark, then
// record the access. While watermarking is enabled, every grant-backed
// delivery and every download carries a mark; untokened views (owner
// and privileged) and file types no marker supports pass through.
type DeliveryService struct {
	db       *gorm.DB
	access   *AccessService
	settings *SettingsService
	vault    *vault.Vault
	blobs    BlobStore
	marker   Watermarker
}

// Caller identifies the authenticated user asking for a delivery.
type Caller struct {
	ID   uuid.UUID
	Role models.UserRole
}

// Delivery is a ready-to-serve response body.
type Delivery struct {
	Data        []byte
	MimeType    string
	Filename    string
	Watermarked bool
}

type authzKind int

const (
	authzDenied authzKind = iota
	authzOwner
	authzPrivileged
	authzGrant
)

type authzOutcome struct {
	kind  authzKind
	grant CheckResult
}

func NewDeliveryService(db *gorm.DB, access *AccessService, settings *SettingsService, v *vault.Vault, blobs BlobStore, marker Watermarker) *DeliveryService {
	return &DeliveryService{
		db:       db,
		access:   access,
		settings: settings,
		vault:    v,
		blobs:    blobs,
		marker:   marker,
	}
}

// View delivers a file for in-browser display.
func (s *DeliveryService) View(caller Caller, manuscriptID uuid.UUID, position int) (*Delivery, error) {
	return s.deliver(caller, manuscriptID, position, models.AccessLevelViewContent, false)
}

// Download delivers a file for saving. Every download carries a
// watermark token: the grant's own id when one exists, an ad hoc one
// otherwise, so even owner copies are traceable to a specific delivery.
func (s *DeliveryService) Download(caller Caller, manuscriptID uuid.UUID, position int) (*Delivery, error) {
	return s.deliver(caller, manuscriptID, position, models.AccessLevelDownload, true)
}

func (s *DeliveryService) deliver(caller Caller, manuscriptID uuid.UUID, position int, required models.AccessLevel, download bool) (*Delivery, error) {
	var file models.EncryptedFile
	err := s.db.Preload("Manuscript").
		Where("manuscript_id = ? AND position = ?", manuscriptID, position).
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: manuscript %s has no file at position %d", apperrors.ErrNotFound, manuscriptID, position)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	outcome, err := s.authorize(caller, &file, required)
	if err != nil {
		return nil, err
	}
	if outcome.kind == authzDenied {
		return nil, fmt.Errorf("%w: %s access to manuscript %s", apperrors.ErrForbidden, required, file.ManuscriptID)
	}

	ciphertext, err := s.blobs.Fetch(file.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blob: %w", err)
	}

	plaintext, err := s.vault.Decrypt(ciphertext, file.Checksum)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"file_id":     file.ID,
			"storage_key": file.StorageKey,
		}).WithError(err).Error("Stored file failed decryption")
		return nil, err
	}

	// Settings are read fresh for every delivery so admin changes apply
	// immediately, with no restart and no cache window.
	settings, err := s.settings.Get()
	if err != nil {
		return nil, err
	}

	token := outcome.grant.WatermarkID
	watermarked := false
	if settings.Enabled {
		if file.FileType == models.FileTypeOther {
			logrus.WithFields(logrus.Fields{
				"file_id":   file.ID,
				"mime_type": file.MimeType,
			}).Warn("No watermark support for file type, serving unmarked")
		} else {
			if token == "" && download {
				// Owner and privileged downloads have no grant to borrow
				// a token from. Mint a single-delivery token so the copy
				// is still distinguishable.
				token, err = utils.GenerateWatermarkToken()
				if err != nil {
					return nil, fmt.Errorf("failed to mint watermark token: %w", err)
				}
			}
			// Views without a token, owner and privileged ones, pass
			// through unmarked. Only tokened deliveries get the stamp.
			if token != "" {
				var user models.User
				if err := s.db.Select("id", "display_name", "email", "institution").
					First(&user, "id = ?", caller.ID).Error; err != nil {
					return nil, fmt.Errorf("failed to load recipient: %w", err)
				}
				ctx := watermark.Context{
					DisplayName: user.DisplayName,
					Email:       user.Email,
					Institution: user.Institution,
					WatermarkID: token,
					Timestamp:   time.Now(),
					Settings:    settings,
				}
				plaintext, err = s.marker.Apply(file.FileType, plaintext, ctx)
				if err != nil {
					return nil, err
				}
				watermarked = true
			}
		}
	}

	// Counters move only once the response body is fully built.
	s.recordDelivery(outcome, &file, download)

	return &Delivery{
		Data:        plaintext,
		MimeType:    file.MimeType,
		Filename:    file.OriginalName,
		Watermarked: watermarked,
	}, nil
}

func (s *DeliveryService) authorize(caller Caller, file *models.EncryptedFile, required models.AccessLevel) (authzOutcome, error) {
	if file.Manuscript.OwnerID == caller.ID {
		return authzOutcome{kind: authzOwner}, nil
	}
	if caller.Role.Privileged() {
		return authzOutcome{kind: authzPrivileged}, nil
	}

	result, err := s.access.CheckAccess(file.ManuscriptID, caller.ID, required)
	if err != nil {
		return authzOutcome{}, err
	}
	if !result.HasAccess {
		return authzOutcome{kind: authzDenied}, nil
	}
	return authzOutcome{kind: authzGrant, grant: result}, nil
}

func (s *DeliveryService) recordDelivery(outcome authzOutcome, file *models.EncryptedFile, download bool) {
	if outcome.kind == authzGrant {
		token := outcome.grant.WatermarkID
		go func() {
			var err error
			if download {
				err = s.access.RecordDownload(token)
			} else {
				err = s.access.RecordView(token)
			}
			if err != nil {
				logrus.WithField("watermark_id", token).WithError(err).Warn("Failed to record grant access")
			}
		}()
	}

	column := "view_count"
	if download {
		column = "download_count"
	}
	err := s.db.Model(&models.Manuscript{}).
		Where("id = ?", file.ManuscriptID).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error
	if err != nil {
		logrus.WithField("manuscript_id", file.ManuscriptID).WithError(err).Warn("Failed to bump manuscript counter")
	}
}
