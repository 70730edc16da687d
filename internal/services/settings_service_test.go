// internal/services/settings_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptoria/manuscript-vault/internal/models"
)

func TestSettingsGetCreatesDefault(t *testing.T) {
	db := openTestDB(t)
	svc := NewSettingsService(db)

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.True(t, settings.Enabled)
	assert.Equal(t, models.WatermarkPositionDiagonal, settings.Position)

	again, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, settings.ID, again.ID)
}

func TestSettingsPartialUpdate(t *testing.T) {
	db := openTestDB(t)
	svc := NewSettingsService(db)
	admin := createTestUser(t, db, models.UserRoleAdmin)

	opacity := 0.55
	position := string(models.WatermarkPositionTiled)
	updated, err := svc.Update(admin.ID, &UpdateWatermarkSettingsRequest{
		Opacity:  &opacity,
		Position: &position,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.55, updated.Opacity, 1e-9)
	assert.Equal(t, models.WatermarkPositionTiled, updated.Position)
	// Untouched fields keep their values.
	assert.Equal(t, "Restricted archival material", updated.Text)
	assert.True(t, updated.Enabled)
	require.NotNil(t, updated.UpdatedBy)
	assert.Equal(t, admin.ID, *updated.UpdatedBy)
}

func TestSettingsUpdateRejectsBadValues(t *testing.T) {
	db := openTestDB(t)
	svc := NewSettingsService(db)
	admin := createTestUser(t, db, models.UserRoleAdmin)

	bad := "sideways"
	_, err := svc.Update(admin.ID, &UpdateWatermarkSettingsRequest{Position: &bad})
	assert.Error(t, err)

	color := "grey"
	_, err = svc.Update(admin.ID, &UpdateWatermarkSettingsRequest{Color: &color})
	assert.Error(t, err)

	opacity := 1.5
	_, err = svc.Update(admin.ID, &UpdateWatermarkSettingsRequest{Opacity: &opacity})
	assert.Error(t, err)
}
