// internal/services/service_test.go
package services

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/scriptoria/manuscript-vault/internal/models"
	"github.com/scriptoria/manuscript-vault/internal/utils"
)

// openTestDB builds an in-memory database with the full schema. A single
// connection keeps the concurrency tests honest without sqlite lock
// errors.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Manuscript{},
		&models.EncryptedFile{},
		&models.AccessRequest{},
		&models.AccessGrant{},
		&models.WatermarkSettings{},
		&models.AuditLog{},
	))

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

var userSeq int

func createTestUser(t *testing.T, db *gorm.DB, role models.UserRole) *models.User {
	t.Helper()

	userSeq++
	user := &models.User{
		Username:    fmt.Sprintf("user%d", userSeq),
		Email:       fmt.Sprintf("user%d@example.com", userSeq),
		DisplayName: fmt.Sprintf("Test User %d", userSeq),
		Role:        role,
		Status:      models.UserStatusActive,
	}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestManuscript(t *testing.T, db *gorm.DB, ownerID uuid.UUID) *models.Manuscript {
	t.Helper()

	manuscript := &models.Manuscript{
		OwnerID:    ownerID,
		Title:      "Codex Vaticanus fragment",
		Shelfmark:  "MS 42",
		Restricted: true,
	}
	require.NoError(t, db.Create(manuscript).Error)
	return manuscript
}

func testPagination() utils.PaginationParams {
	return utils.PaginationParams{Page: 1, Limit: 20, Sort: "created_at", Order: "desc"}
}

func fileTestRequest(t *testing.T, db *gorm.DB, svc *AccessService, requesterID, manuscriptID uuid.UUID, level models.AccessLevel) *models.AccessRequest {
	t.Helper()

	request, err := svc.FileRequest(requesterID, manuscriptID, &FileRequestInput{
		Level:   level,
		Purpose: "Comparative paleography research",
	})
	require.NoError(t, err)
	return request
}
