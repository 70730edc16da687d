// internal/services/access_service_test.go
package services

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptoria/manuscript-vault/internal/apperrors"
	"github.com/scriptoria/manuscript-vault/internal/models"
)

func TestFileRequestRejectsDuplicatePending(t *testing.T) {
	db := openTestDB(t)
	svc := NewAccessService(db)

	owner := createTestUser(t, db, models.UserRoleReader)
	reader := createTestUser(t, db, models.UserRoleReader)
	manuscript := createTestManuscript(t, db, owner.ID)

	fileTestRequest(t, db, svc, reader.ID, manuscript.ID, models.AccessLevelViewContent)

	_, err := svc.FileRequest(reader.ID, manuscript.ID, &FileRequestInput{
		Level:   models.AccessLevelDownload,
		Purpose: "Comparative paleography research",
	})
	assert.ErrorIs(t, err, apperrors.ErrDuplicatePending)
}

func TestFileRequestInvalidLevel(t *testing.T) {
	db := openTestDB(t)
	svc := NewAccessService(db)

	owner := createTestUser(t, db, models.UserRoleReader)
	reader := createTestUser(t, db, models.UserRoleReader)
	manuscript := createTestManuscript(t, db, owner.ID)

	_, err := svc.FileRequest(reader.ID, manuscript.ID, &FileRequestInput{
		Level:   "superuser",
		Purpose: "Comparative paleography research",
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidLevel)
}

func TestFileRequestUnknownManuscript(t *testing.T) {
	db := openTestDB(t)
	svc := NewAccessService(db)

	reader := createTestUser(t, db, models.UserRoleReader)

	_, err := svc.FileRequest(reader.ID, uuid.New(), &FileRequestInput{
		Level:   models.AccessLevelViewContent,
		Purpose: "Comparative paleography research",
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestApproveCreatesGrantWithToken(t *testing.T) {
	db := openTestDB(t)
	svc := NewAccessService(db)

	owner := createTestUser(t, db, models.UserRoleReader)
	reader := createTestUser(t, db, models.UserRoleReader)
	reviewer := createTestUser(t, db, models.UserRoleReviewer)
	manuscript := createTestManuscript(t, db, owner.ID)

	request := fileTestRequest(t, db, svc, reader.ID, manuscript.ID, models.AccessLevelViewContent)

	days := 30
	grant, err := svc.ResolveRequest(request.ID, reviewer.ID, &ResolveRequestInput{
		Approve:      true,
		ApprovedDays: &days,
	})
	require.NoError(t, err)
	require.NotNil(t, grant)

	assert.Equal(t, models.AccessLevelViewContent, grant.Level)
	assert.True(t, grant.IsActive)
	assert.NotEmpty(t, grant.WatermarkID)
	require.NotNil(t, grant.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), *grant.ExpiresAt, time.Minute)

	var reloaded models.AccessRequest
	require.NoError(t, db.First(&reloaded, "id = ?", request.ID).Error)
	assert.Equal(t, models.RequestStatusApproved, reloaded.Status)
	require.NotNil(t, reloaded.ReviewerID)
	assert.Equal(t, reviewer.ID, *reloaded.ReviewerID)
}

func TestApproveKeepsWatermarkIDAcrossReapproval(t *testing.T) {
	db := openTestDB(t)
	svc := NewAccessService(db)

	owner := createTestUser(t, db, models.UserRoleReader)
	reader := createTestUser(t, db, models.UserRoleReader)
	reviewer := createTestUser(t, db, models.UserRoleReviewer)
	manuscript := createTestManuscript(t, db, owner.ID)

	first := fileTestRequest(t, db, svc, reader.ID, manuscript.ID, models.AccessLevelDownload)
	grant1, err := svc.ResolveRequest(first.ID, reviewer.ID, &ResolveRequestInput{Approve: true})
	require.NoError(t, err)

	// A later approval at a lower level updates the same grant in place.
	second := fileTestRequest(t, db, svc, reader.ID, manuscript.ID, models.AccessLevelViewContent)
	grant2, err := svc.ResolveRequest(second.ID, reviewer.ID, &ResolveRequestInput{Approve: true})
	require.NoError(t, err)

	assert.Equal(t, grant1.ID, grant2.ID)
	assert.Equal(t, grant1.WatermarkID, grant2.WatermarkID)
	assert.Equal(t, models.AccessLevelViewContent, grant2.Level)

	var count int64
	db.Model(&models.AccessGrant{}).Where("grantee_id = ?", reader.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestRejectIsTerminal(t *testing.T) {
	db := openTestDB(t)
	svc := NewAccessService(db)

	owner := createTestUser(t, db, models.UserRoleReader)
	reader := createTestUser(t, db, models.UserRoleReader)
	reviewer := createTestUser(t, db, models.UserRoleReviewer)
	manuscript := createTestManuscript(t, db, owner.ID)

	request := fileTestRequest(t, db, svc, reader.ID, manuscript.ID, models.AccessLevelViewContent)

	grant, err := svc.ResolveRequest(request.ID, reviewer.ID, &ResolveRequestInput{
		Approve: false,
		Notes:   "Insufficient justification",
	})
	require.NoError(t, err)
	assert.Nil(t, grant)

	// Resolving again in either direction fails, and surfaces as an
	// illegal state transition as well as the specific sentinel.
	_, err = svc.ResolveRequest(request.ID, reviewer.ID, &ResolveRequestInput{Approve: true})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyResolved)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	result, err := svc.CheckAccess(manuscript.ID, reader.ID, models.AccessLevelViewContent)
	require.NoError(t, err)
	assert.False(t, result.HasAccess)
}

func TestResolveRequiresReviewerOrOwner(t *testing.T) {
	db := openTestDB(t)
	svc := NewAccessService(db)

	owner := createTestUser(t, db, models.UserRoleReader)
	reader := createTestUser(t, db, models.UserRoleReader)
	bystander := createTestUser(t, db, models.UserRoleReader)
	manuscript := createTestManuscript(t, db, owner.ID)

	request := fileTestRequest(t, db, svc, reader.ID, manuscript.ID, models.AccessLevelViewContent)

	_, err := svc.ResolveRequest(request.ID, bystander.ID, &ResolveRequestInput{Approve: true})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	// The manuscript owner may resolve without the reviewer role.
	grant, err := svc.ResolveRequest(request.ID, owner.ID, &ResolveRequestInput{Approve: true})
	require.NoError(t, err)
	assert.NotNil(t, grant)
}

func TestCheckAccessLevelOrdering(t *testing.T) {
	db := openTestDB(t)
	svc := NewAccessService(db)

	owner := createTestUser(t, db, models.UserRoleReader)
	reader := createTestUser(t, db, models.UserRoleReader)
	reviewer := createTestUser(t, db, models.UserRoleReviewer)
	manuscript := createTestManuscript(t, db, owner.ID)

	request := fileTestRequest(t, db, svc, reader.ID, manuscript.ID, models.AccessLevelViewContent)
	grant, err := svc.ResolveRequest(request.ID, reviewer.ID, &ResolveRequestInput{Approve: true})
	require.NoError(t, err)

	view, err := svc.CheckAccess(manuscript.ID, reader.ID, models.AccessLevelViewContent)
	require.NoError(t, err)
	assert.True(t, view.HasAccess)
	assert.Equal(t, grant.WatermarkID, view.WatermarkID)

	meta, err := svc.CheckAccess(manuscript.ID, reader.ID, models.AccessLevelViewMetadata)
	require.NoError(t, err)
	assert.True(t, meta.HasAccess)

	download, err := svc.CheckAccess(manuscript.ID, reader.ID, models.AccessLevelDownload)
	require.NoError(t, err)
	assert.False(t, download.HasAccess)
}

func TestCheckAccessOwnerBypassesGrants(t *testing.T) {
	db := openTestDB(t)
	svc := NewAccessService(db)

	owner := createTestUser(t, db, models.UserRoleReader)
	manuscript := createTestManuscript(t, db, owner.ID)

	result, err := svc.CheckAccess(manuscript.ID, owner.ID, models.AccessLevelDownload)
	require.NoError(t, err)
	assert.True(t, result.HasAccess)
	assert.True(t, result.Owner)
	assert.Empty(t, result.WatermarkID)
}

func TestCheckAccessExpiredGrant(t *testing.T) {
	db := openTestDB(t)
	svc := NewAccessService(db)

	owner := createTestUser(t, db, models.UserRoleReader)
	reader := createTestUser(t, db, models.UserRoleReader)
	reviewer := createTestUser(t, db, models.UserRoleReviewer)
	manuscript := createTestManuscript(t, db, owner.ID)

	request := fileTestRequest(t, db, svc, reader.ID, manuscript.ID, models.AccessLevelViewContent)
	grant, err := svc.ResolveRequest(request.ID, reviewer.ID, &ResolveRequestInput{Approve: true})
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&models.AccessGrant{}).
		Where("id = ?", grant.ID).
		Update("expires_at", past).Error)

	result, err := svc.CheckAccess(manuscript.ID, reader.ID, models.AccessLevelViewContent)
	require.NoError(t, err)
	assert.False(t, result.HasAccess)
}

func TestRevokeIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	svc := NewAccessService(db)

	owner := createTestUser(t, db, models.UserRoleReader)
	reader := createTestUser(t, db, models.UserRoleReader)
	reviewer := createTestUser(t, db, models.UserRoleReviewer)
	manuscript := createTestManuscript(t, db, owner.ID)

	request := fileTestRequest(t, db, svc, reader.ID, manuscript.ID, models.AccessLevelViewContent)
	grant, err := svc.ResolveRequest(request.ID, reviewer.ID, &ResolveRequestInput{Approve: true})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(grant.ID, owner.ID, "policy change"))
	require.NoError(t, svc.Revoke(grant.ID, owner.ID, "again"))

	var reloaded models.AccessGrant
	require.NoError(t, db.First(&reloaded, "id = ?", grant.ID).Error)
	assert.False(t, reloaded.IsActive)
	assert.Equal(t, "policy change", reloaded.RevokeReason)
	require.NotNil(t, reloaded.RevokedBy)
	assert.Equal(t, owner.ID, *reloaded.RevokedBy)

	result, err := svc.CheckAccess(manuscript.ID, reader.ID, models.AccessLevelViewContent)
	require.NoError(t, err)
	assert.False(t, result.HasAccess)
}

func TestRevokeRequiresAuthority(t *testing.T) {
	db := openTestDB(t)
	svc := NewAccessService(db)

	owner := createTestUser(t, db, models.UserRoleReader)
	reader := createTestUser(t, db, models.UserRoleReader)
	reviewer := createTestUser(t, db, models.UserRoleReviewer)
	bystander := createTestUser(t, db, models.UserRoleReader)
	manuscript := createTestManuscript(t, db, owner.ID)

	request := fileTestRequest(t, db, svc, reader.ID, manuscript.ID, models.AccessLevelViewContent)
	grant, err := svc.ResolveRequest(request.ID, reviewer.ID, &ResolveRequestInput{Approve: true})
	require.NoError(t, err)

	err = svc.Revoke(grant.ID, bystander.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestRecordViewConcurrentIncrements(t *testing.T) {
	db := openTestDB(t)
	svc := NewAccessService(db)

	owner := createTestUser(t, db, models.UserRoleReader)
	reader := createTestUser(t, db, models.UserRoleReader)
	reviewer := createTestUser(t, db, models.UserRoleReviewer)
	manuscript := createTestManuscript(t, db, owner.ID)

	request := fileTestRequest(t, db, svc, reader.ID, manuscript.ID, models.AccessLevelViewContent)
	grant, err := svc.ResolveRequest(request.ID, reviewer.ID, &ResolveRequestInput{Approve: true})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.RecordView(grant.WatermarkID))
		}()
	}
	wg.Wait()

	var reloaded models.AccessGrant
	require.NoError(t, db.First(&reloaded, "id = ?", grant.ID).Error)
	assert.EqualValues(t, n, reloaded.ViewCount)
	assert.EqualValues(t, 0, reloaded.DownloadCount)
	assert.NotNil(t, reloaded.LastAccessedAt)
}

func TestRecordDownloadUnknownToken(t *testing.T) {
	db := openTestDB(t)
	svc := NewAccessService(db)

	err := svc.RecordDownload("wm_doesnotexist")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPendingRequestsListsOnlyPending(t *testing.T) {
	db := openTestDB(t)
	svc := NewAccessService(db)

	owner := createTestUser(t, db, models.UserRoleReader)
	readerA := createTestUser(t, db, models.UserRoleReader)
	readerB := createTestUser(t, db, models.UserRoleReader)
	reviewer := createTestUser(t, db, models.UserRoleReviewer)
	manuscript := createTestManuscript(t, db, owner.ID)

	fileTestRequest(t, db, svc, readerA.ID, manuscript.ID, models.AccessLevelViewContent)
	resolved := fileTestRequest(t, db, svc, readerB.ID, manuscript.ID, models.AccessLevelViewContent)
	_, err := svc.ResolveRequest(resolved.ID, reviewer.ID, &ResolveRequestInput{Approve: false})
	require.NoError(t, err)

	requests, total, err := svc.PendingRequests(testPagination())
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, requests, 1)
	assert.Equal(t, readerA.ID, requests[0].RequesterID)
}

func TestGrantsForManuscriptRequiresOwnerOrPrivileged(t *testing.T) {
	db := openTestDB(t)
	svc := NewAccessService(db)

	owner := createTestUser(t, db, models.UserRoleReader)
	reader := createTestUser(t, db, models.UserRoleReader)
	manuscript := createTestManuscript(t, db, owner.ID)

	_, _, err := svc.GrantsForManuscript(manuscript.ID, reader.ID, models.UserRoleReader, testPagination())
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, _, err = svc.GrantsForManuscript(manuscript.ID, owner.ID, models.UserRoleReader, testPagination())
	assert.NoError(t, err)
}
