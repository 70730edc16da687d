// internal/services/manuscript_service.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scriptoria/manuscript-vault/internal/apperrors"
	"github.com/scriptoria/manuscript-vault/internal/models"
	"github.com/scriptoria/manuscript-vault/internal/utils"
	"github.com/scriptoria/manuscript-vault/internal/vault"
)

// ManuscriptService manages manuscript records and ingests their files
// into the encrypted blob store.
type ManuscriptService struct {
	db    *gorm.DB
	vault *vault.Vault
	blobs BlobStore
}

type CreateManuscriptInput struct {
	Title       string `json:"title" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"omitempty,max=5000"`
	Shelfmark   string `json:"shelfmark" validate:"omitempty,max=100"`
	Period      string `json:"period" validate:"omitempty,max=100"`
	Restricted  bool   `json:"restricted"`
}

func NewManuscriptService(db *gorm.DB, v *vault.Vault, blobs BlobStore) *ManuscriptService {
	return &ManuscriptService{db: db, vault: v, blobs: blobs}
}

func (s *ManuscriptService) CreateManuscript(ownerID uuid.UUID, in *CreateManuscriptInput) (*models.Manuscript, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	manuscript := &models.Manuscript{
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		Shelfmark:   in.Shelfmark,
		Period:      in.Period,
		Restricted:  in.Restricted,
	}

	if err := s.db.Create(manuscript).Error; err != nil {
		return nil, fmt.Errorf("failed to create manuscript: %w", err)
	}

	return manuscript, nil
}

// GetManuscript fetches one record with its files in reading order.
func (s *ManuscriptService) GetManuscript(id uuid.UUID) (*models.Manuscript, error) {
	var manuscript models.Manuscript
	err := s.db.Preload("Owner").
		Preload("Files", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&manuscript, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: manuscript %s", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &manuscript, nil
}

func (s *ManuscriptService) ListManuscripts(params utils.PaginationParams, search string) ([]models.Manuscript, int64, error) {
	query := s.db.Model(&models.Manuscript{}).Preload("Owner")

	if search != "" {
		pattern := "%" + search + "%"
		query = query.Where("title LIKE ? OR shelfmark LIKE ? OR period LIKE ?", pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count manuscripts: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "title", "view_count"})
	query = utils.ApplyPagination(query, params)

	var manuscripts []models.Manuscript
	if err := query.Find(&manuscripts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch manuscripts: %w", err)
	}

	return manuscripts, total, nil
}

// AttachFile encrypts the uploaded bytes, stores the ciphertext and
// records the file row. Plaintext never reaches the blob store; the
// checksum recorded is the digest of the plaintext, verified again on
// every delivery.
func (s *ManuscriptService) AttachFile(manuscriptID, callerID uuid.UUID, callerRole models.UserRole, originalName, mimeType string, position int, data []byte) (*models.EncryptedFile, error) {
	var manuscript models.Manuscript
	if err := s.db.Select("id", "owner_id").First(&manuscript, "id = ?", manuscriptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: manuscript %s", apperrors.ErrNotFound, manuscriptID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if manuscript.OwnerID != callerID && callerRole != models.UserRoleAdmin {
		return nil, fmt.Errorf("%w: only the owner may attach files", apperrors.ErrForbidden)
	}

	ciphertext, digest, err := s.vault.Encrypt(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt file: %w", err)
	}

	storageKey := GenerateStorageKey(manuscriptID, originalName)
	if err := s.blobs.Put(storageKey, ciphertext, "application/octet-stream"); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	file := &models.EncryptedFile{
		ManuscriptID: manuscriptID,
		Position:     position,
		FileType:     fileTypeFromMime(mimeType),
		OriginalName: originalName,
		MimeType:     mimeType,
		Size:         int64(len(data)),
		Checksum:     digest,
		StorageKey:   storageKey,
	}

	if err := s.db.Create(file).Error; err != nil {
		// The row failed but the blob landed; drop it so retries do not
		// leak orphan ciphertext.
		if delErr := s.blobs.Delete(storageKey); delErr != nil {
			return nil, fmt.Errorf("failed to record file (orphan blob %s): %w", storageKey, err)
		}
		return nil, fmt.Errorf("failed to record file: %w", err)
	}

	return file, nil
}

// RemoveFile deletes a file row and its stored ciphertext.
func (s *ManuscriptService) RemoveFile(manuscriptID uuid.UUID, position int, callerID uuid.UUID, callerRole models.UserRole) error {
	var file models.EncryptedFile
	err := s.db.Preload("Manuscript").
		Where("manuscript_id = ? AND position = ?", manuscriptID, position).
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: manuscript %s has no file at position %d", apperrors.ErrNotFound, manuscriptID, position)
		}
		return fmt.Errorf("database error: %w", err)
	}

	if file.Manuscript.OwnerID != callerID && callerRole != models.UserRoleAdmin {
		return fmt.Errorf("%w: only the owner may remove files", apperrors.ErrForbidden)
	}

	if err := s.db.Delete(&file).Error; err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	if err := s.blobs.Delete(file.StorageKey); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", file.StorageKey, err)
	}

	return nil
}

func fileTypeFromMime(mimeType string) models.FileType {
	switch {
	case mimeType == "application/pdf":
		return models.FileTypePDF
	case strings.HasPrefix(mimeType, "image/"):
		return models.FileTypeImage
	default:
		return models.FileTypeOther
	}
}
