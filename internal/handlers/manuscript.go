// internal/handlers/manuscript.go
package handlers

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/scriptoria/manuscript-vault/internal/i18n"
	"github.com/scriptoria/manuscript-vault/internal/services"
	"github.com/scriptoria/manuscript-vault/internal/utils"
)

// Uploads above this size are rejected before touching the vault.
const maxUploadSize = 100 << 20 // 100 MB

type ManuscriptHandler struct {
	manuscriptService *services.ManuscriptService
	deliveryService   *services.DeliveryService
}

func NewManuscriptHandler(manuscriptService *services.ManuscriptService, deliveryService *services.DeliveryService) *ManuscriptHandler {
	return &ManuscriptHandler{
		manuscriptService: manuscriptService,
		deliveryService:   deliveryService,
	}
}

// POST /manuscripts
func (h *ManuscriptHandler) CreateManuscript(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateManuscriptInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	manuscript, err := h.manuscriptService.CreateManuscript(ownerID, &req)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":    i18n.T(lang, i18n.KeyManuscriptCreated),
		"manuscript": manuscript,
	})
}

// GET /manuscripts
func (h *ManuscriptHandler) ListManuscripts(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	search := c.Query("search")

	manuscripts, total, err := h.manuscriptService.ListManuscripts(params, search)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(manuscripts, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /manuscripts/:id
func (h *ManuscriptHandler) GetManuscript(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid manuscript ID", nil)
		return
	}

	manuscript, err := h.manuscriptService.GetManuscript(id)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"manuscript": manuscript,
	})
}

// POST /manuscripts/:id/files
func (h *ManuscriptHandler) UploadFile(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	manuscriptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid manuscript ID", nil)
		return
	}

	callerID, ok := currentUserID(c)
	if !ok {
		return
	}
	role := currentUserRole(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "Missing file field", err.Error())
		return
	}
	if fileHeader.Size > maxUploadSize {
		utils.BadRequestResponse(c, fmt.Sprintf("File exceeds maximum size of %d bytes", maxUploadSize), nil)
		return
	}

	position := 0
	if p := c.PostForm("position"); p != "" {
		position, err = strconv.Atoi(p)
		if err != nil || position < 0 {
			utils.BadRequestResponse(c, "Invalid position", nil)
			return
		}
	}

	src, err := fileHeader.Open()
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileUploadFailed), err.Error())
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileUploadFailed), err.Error())
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	file, err := h.manuscriptService.AttachFile(manuscriptID, callerID, role, fileHeader.Filename, mimeType, position, data)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyFileUploaded),
		"file":    file,
	})
}

// DELETE /manuscripts/:id/files/:index
func (h *ManuscriptHandler) DeleteFile(c *gin.Context) {
	manuscriptID, position, ok := filePath(c)
	if !ok {
		return
	}

	callerID, ok := currentUserID(c)
	if !ok {
		return
	}
	role := currentUserRole(c)

	if err := h.manuscriptService.RemoveFile(manuscriptID, position, callerID, role); err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"deleted": true,
	})
}

// GET /manuscripts/:id/files/:index/view
func (h *ManuscriptHandler) ViewFile(c *gin.Context) {
	h.serveFile(c, false)
}

// GET /manuscripts/:id/files/:index/download
func (h *ManuscriptHandler) DownloadFile(c *gin.Context) {
	h.serveFile(c, true)
}

func filePath(c *gin.Context) (uuid.UUID, int, bool) {
	manuscriptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid manuscript ID", nil)
		return uuid.Nil, 0, false
	}

	position, err := strconv.Atoi(c.Param("index"))
	if err != nil || position < 0 {
		utils.BadRequestResponse(c, "Invalid file index", nil)
		return uuid.Nil, 0, false
	}
	return manuscriptID, position, true
}

func (h *ManuscriptHandler) serveFile(c *gin.Context, download bool) {
	manuscriptID, position, ok := filePath(c)
	if !ok {
		return
	}

	callerID, ok := currentUserID(c)
	if !ok {
		return
	}

	caller := services.Caller{ID: callerID, Role: currentUserRole(c)}

	var delivery *services.Delivery
	var err error
	if download {
		delivery, err = h.deliveryService.Download(caller, manuscriptID, position)
	} else {
		delivery, err = h.deliveryService.View(caller, manuscriptID, position)
	}
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	// Watermarked bytes are personalized; nothing on the path may cache
	// them and hand one reader's copy to another.
	c.Header("Cache-Control", "no-store")
	disposition := "inline"
	if download {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`%s; filename="%s"`, disposition, delivery.Filename))
	c.Data(200, delivery.MimeType, delivery.Data)
}
