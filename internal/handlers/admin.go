// internal/handlers/admin.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/scriptoria/manuscript-vault/internal/i18n"
	"github.com/scriptoria/manuscript-vault/internal/services"
	"github.com/scriptoria/manuscript-vault/internal/utils"
)

type AdminHandler struct {
	settingsService *services.SettingsService
}

func NewAdminHandler(settingsService *services.SettingsService) *AdminHandler {
	return &AdminHandler{
		settingsService: settingsService,
	}
}

// GET /admin/watermark-settings
func (h *AdminHandler) GetWatermarkSettings(c *gin.Context) {
	settings, err := h.settingsService.Get()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"settings": settings,
	})
}

// PUT /admin/watermark-settings
func (h *AdminHandler) UpdateWatermarkSettings(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.UpdateWatermarkSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	settings, err := h.settingsService.Update(adminID, &req)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeySettingsUpdated),
		"settings": settings,
	})
}
