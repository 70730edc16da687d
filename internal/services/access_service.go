// internal/services/access_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scriptoria/manuscript-vault/internal/apperrors"
	"github.com/scriptoria/manuscript-vault/internal/models"
	"github.com/scriptoria/manuscript-vault/internal/utils"
)

// AccessService is the authorization ledger: it answers "may user U
// perform operation L on manuscript M" and manages the lifecycle of
// access requests and grants.
type AccessService struct {
	db *gorm.DB
}

type FileRequestInput struct {
	Level       models.AccessLevel `json:"level" validate:"required,access_level"`
	Purpose     string             `json:"purpose" validate:"required,min=10"`
	Institution string             `json:"institution" validate:"omitempty,max=255"`
	Days        *int               `json:"days" validate:"omitempty,min=1,max=3650"`
}

type ResolveRequestInput struct {
	Approve       bool                `json:"approve"`
	ApprovedLevel *models.AccessLevel `json:"approved_level"`
	ApprovedDays  *int                `json:"approved_days" validate:"omitempty,min=1,max=3650"`
	Notes         string              `json:"notes" validate:"omitempty,max=2000"`
}

// CheckResult is the discriminated outcome of an authorization query.
type CheckResult struct {
	HasAccess    bool                `json:"has_access"`
	Owner        bool                `json:"owner"`
	WatermarkID  string              `json:"watermark_id,omitempty"`
	GrantedLevel *models.AccessLevel `json:"granted_level,omitempty"`
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{db: db}
}

// FileRequest records a reader's request for access. Duplicate pending
// requests for the same manuscript are rejected so reviewers see one open
// item per (requester, manuscript) pair.
func (s *AccessService) FileRequest(requesterID, manuscriptID uuid.UUID, in *FileRequestInput) (*models.AccessRequest, error) {
	if !in.Level.Valid() {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidLevel, in.Level)
	}

	if err := utils.ValidateStruct(in); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var manuscript models.Manuscript
	if err := s.db.Select("id", "owner_id").First(&manuscript, "id = ?", manuscriptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: manuscript %s", apperrors.ErrNotFound, manuscriptID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	var pending models.AccessRequest
	err := s.db.Where("manuscript_id = ? AND requester_id = ? AND status = ?",
		manuscriptID, requesterID, models.RequestStatusPending).First(&pending).Error
	if err == nil {
		return nil, fmt.Errorf("%w: request %s", apperrors.ErrDuplicatePending, pending.ID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	request := &models.AccessRequest{
		RequesterID:    requesterID,
		ManuscriptID:   manuscriptID,
		RequestedLevel: in.Level,
		Purpose:        in.Purpose,
		Institution:    in.Institution,
		RequestedDays:  in.Days,
		Status:         models.RequestStatusPending,
	}

	if err := s.db.Create(request).Error; err != nil {
		return nil, fmt.Errorf("failed to create access request: %w", err)
	}

	return request, nil
}

// ResolveRequest approves or rejects a pending request. Approval returns
// the resulting grant: an existing active grant for the same pair is
// updated in place and keeps its watermark id; otherwise a fresh token is
// minted. Rejection is terminal and touches no grant.
func (s *AccessService) ResolveRequest(requestID, reviewerID uuid.UUID, in *ResolveRequestInput) (*models.AccessGrant, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var request models.AccessRequest
	if err := s.db.Preload("Manuscript").First(&request, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: access request %s", apperrors.ErrNotFound, requestID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if request.Status != models.RequestStatusPending {
		return nil, fmt.Errorf("%w: request is %s", apperrors.ErrAlreadyResolved, request.Status)
	}

	if err := s.authorizeReviewer(&request, reviewerID); err != nil {
		return nil, err
	}

	now := time.Now()
	request.ReviewerID = &reviewerID
	request.ReviewNotes = in.Notes
	request.ResolvedAt = &now

	if !in.Approve {
		request.Status = models.RequestStatusRejected
		if err := s.db.Save(&request).Error; err != nil {
			return nil, fmt.Errorf("failed to update access request: %w", err)
		}
		return nil, nil
	}

	level := request.RequestedLevel
	if in.ApprovedLevel != nil {
		level = *in.ApprovedLevel
	}
	if !level.Valid() {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidLevel, level)
	}

	days := request.RequestedDays
	if in.ApprovedDays != nil {
		days = in.ApprovedDays
	}
	var expiresAt *time.Time
	if days != nil {
		t := now.Add(time.Duration(*days) * 24 * time.Hour)
		expiresAt = &t
	}

	request.Status = models.RequestStatusApproved
	request.ApprovedLevel = &level
	request.ApprovedDays = days

	var grant *models.AccessGrant
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.AccessGrant
		err := tx.Where("manuscript_id = ? AND grantee_id = ? AND is_active = ?",
			request.ManuscriptID, request.RequesterID, true).First(&existing).Error

		switch {
		case err == nil:
			// Approval always sets the grant to exactly the approved
			// level, downgrades included. The watermark id survives.
			existing.Level = level
			existing.ExpiresAt = expiresAt
			existing.GrantedBy = reviewerID
			existing.GrantedAt = now
			if err := tx.Save(&existing).Error; err != nil {
				return fmt.Errorf("failed to update grant: %w", err)
			}
			grant = &existing

		case errors.Is(err, gorm.ErrRecordNotFound):
			token, err := utils.GenerateWatermarkToken()
			if err != nil {
				return fmt.Errorf("failed to mint watermark token: %w", err)
			}
			grant = &models.AccessGrant{
				ManuscriptID: request.ManuscriptID,
				GranteeID:    request.RequesterID,
				Level:        level,
				GrantedBy:    reviewerID,
				GrantedAt:    now,
				ExpiresAt:    expiresAt,
				IsActive:     true,
				WatermarkID:  token,
			}
			if err := tx.Create(grant).Error; err != nil {
				return fmt.Errorf("failed to create grant: %w", err)
			}

		default:
			return fmt.Errorf("database error: %w", err)
		}

		if err := tx.Save(&request).Error; err != nil {
			return fmt.Errorf("failed to update access request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return grant, nil
}

func (s *AccessService) authorizeReviewer(request *models.AccessRequest, reviewerID uuid.UUID) error {
	if request.Manuscript.OwnerID == reviewerID {
		return nil
	}

	var reviewer models.User
	if err := s.db.Select("id", "role").First(&reviewer, "id = ?", reviewerID).Error; err != nil {
		return fmt.Errorf("%w: not authorized to resolve this request", apperrors.ErrForbidden)
	}
	if !reviewer.Role.Privileged() {
		return fmt.Errorf("%w: not authorized to resolve this request", apperrors.ErrForbidden)
	}
	return nil
}

// CheckAccess answers the authorization question for one user and level.
// Owners get full access without a grant token; their deliveries are
// marked with an ad hoc token by the delivery path instead.
func (s *AccessService) CheckAccess(manuscriptID, userID uuid.UUID, required models.AccessLevel) (CheckResult, error) {
	if !required.Valid() {
		return CheckResult{}, fmt.Errorf("%w: %q", apperrors.ErrInvalidLevel, required)
	}

	var manuscript models.Manuscript
	if err := s.db.Select("id", "owner_id").First(&manuscript, "id = ?", manuscriptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CheckResult{}, fmt.Errorf("%w: manuscript %s", apperrors.ErrNotFound, manuscriptID)
		}
		return CheckResult{}, fmt.Errorf("database error: %w", err)
	}

	if manuscript.OwnerID == userID {
		return CheckResult{HasAccess: true, Owner: true}, nil
	}

	var grant models.AccessGrant
	err := s.db.Where("manuscript_id = ? AND grantee_id = ? AND is_active = ?",
		manuscriptID, userID, true).First(&grant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CheckResult{}, nil
	}
	if err != nil {
		return CheckResult{}, fmt.Errorf("database error: %w", err)
	}

	if grant.Expired(time.Now()) {
		return CheckResult{}, nil
	}

	if !grant.Level.Covers(required) {
		return CheckResult{}, nil
	}

	level := grant.Level
	return CheckResult{
		HasAccess:    true,
		WatermarkID:  grant.WatermarkID,
		GrantedLevel: &level,
	}, nil
}

// Revoke deactivates a grant. Revoking an already-inactive grant is a
// no-op success.
func (s *AccessService) Revoke(grantID, revokerID uuid.UUID, reason string) error {
	var grant models.AccessGrant
	if err := s.db.Preload("Manuscript").First(&grant, "id = ?", grantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: grant %s", apperrors.ErrNotFound, grantID)
		}
		return fmt.Errorf("database error: %w", err)
	}

	if grant.Manuscript.OwnerID != revokerID && grant.GrantedBy != revokerID {
		var revoker models.User
		if err := s.db.Select("id", "role").First(&revoker, "id = ?", revokerID).Error; err != nil {
			return fmt.Errorf("%w: not authorized to revoke this grant", apperrors.ErrForbidden)
		}
		if !revoker.Role.Privileged() {
			return fmt.Errorf("%w: not authorized to revoke this grant", apperrors.ErrForbidden)
		}
	}

	if !grant.IsActive {
		return nil
	}

	now := time.Now()
	grant.IsActive = false
	grant.RevokedAt = &now
	grant.RevokedBy = &revokerID
	grant.RevokeReason = reason

	if err := s.db.Save(&grant).Error; err != nil {
		return fmt.Errorf("failed to revoke grant: %w", err)
	}

	return nil
}

// RecordView bumps the view counter for a grant watermark id. The
// increment is a single conditional UPDATE so concurrent deliveries for
// the same grant never lose updates.
func (s *AccessService) RecordView(watermarkID string) error {
	return s.recordAccess(watermarkID, "view_count")
}

// RecordDownload bumps the download counter for a grant watermark id.
func (s *AccessService) RecordDownload(watermarkID string) error {
	return s.recordAccess(watermarkID, "download_count")
}

func (s *AccessService) recordAccess(watermarkID, column string) error {
	result := s.db.Model(&models.AccessGrant{}).
		Where("watermark_id = ?", watermarkID).
		UpdateColumns(map[string]interface{}{
			column:             gorm.Expr(column + " + 1"),
			"last_accessed_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record access: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: watermark id %s", apperrors.ErrNotFound, watermarkID)
	}
	return nil
}

// PendingRequests lists the open review queue.
func (s *AccessService) PendingRequests(params utils.PaginationParams) ([]models.AccessRequest, int64, error) {
	query := s.db.Model(&models.AccessRequest{}).
		Where("status = ?", models.RequestStatusPending).
		Preload("Requester").Preload("Manuscript")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count pending requests: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at"})
	query = utils.ApplyPagination(query, params)

	var requests []models.AccessRequest
	if err := query.Find(&requests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch pending requests: %w", err)
	}

	return requests, total, nil
}

// RequestsForUser lists a requester's own requests, newest first.
func (s *AccessService) RequestsForUser(userID uuid.UUID, params utils.PaginationParams) ([]models.AccessRequest, int64, error) {
	query := s.db.Model(&models.AccessRequest{}).
		Where("requester_id = ?", userID).
		Preload("Manuscript")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "resolved_at", "status"})
	query = utils.ApplyPagination(query, params)

	var requests []models.AccessRequest
	if err := query.Find(&requests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch requests: %w", err)
	}

	return requests, total, nil
}

// GrantsForManuscript lists grants on one manuscript for its owner or a
// privileged role.
func (s *AccessService) GrantsForManuscript(manuscriptID, callerID uuid.UUID, callerRole models.UserRole, params utils.PaginationParams) ([]models.AccessGrant, int64, error) {
	var manuscript models.Manuscript
	if err := s.db.Select("id", "owner_id").First(&manuscript, "id = ?", manuscriptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, fmt.Errorf("%w: manuscript %s", apperrors.ErrNotFound, manuscriptID)
		}
		return nil, 0, fmt.Errorf("database error: %w", err)
	}

	if manuscript.OwnerID != callerID && !callerRole.Privileged() {
		return nil, 0, fmt.Errorf("%w: not authorized to inspect grants", apperrors.ErrForbidden)
	}

	query := s.db.Model(&models.AccessGrant{}).
		Where("manuscript_id = ?", manuscriptID).
		Preload("Grantee")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count grants: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "granted_at", "expires_at"})
	query = utils.ApplyPagination(query, params)

	var grants []models.AccessGrant
	if err := query.Find(&grants).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch grants: %w", err)
	}

	return grants, total, nil
}

// GrantsForUser lists the caller's own active grants.
func (s *AccessService) GrantsForUser(userID uuid.UUID) ([]models.AccessGrant, error) {
	var grants []models.AccessGrant
	if err := s.db.Where("grantee_id = ? AND is_active = ?", userID, true).
		Preload("Manuscript").
		Order("granted_at DESC").
		Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch grants: %w", err)
	}
	return grants, nil
}
