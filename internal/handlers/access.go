// internal/handlers/access.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/scriptoria/manuscript-vault/internal/i18n"
	"github.com/scriptoria/manuscript-vault/internal/models"
	"github.com/scriptoria/manuscript-vault/internal/services"
	"github.com/scriptoria/manuscript-vault/internal/utils"
)

type AccessHandler struct {
	accessService *services.AccessService
}

func NewAccessHandler(accessService *services.AccessService) *AccessHandler {
	return &AccessHandler{
		accessService: accessService,
	}
}

type fileRequestBody struct {
	ManuscriptID string `json:"manuscript_id" validate:"required,uuid"`
	services.FileRequestInput
}

// POST /access-requests
func (h *AccessHandler) FileRequest(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	requesterID, ok := currentUserID(c)
	if !ok {
		return
	}

	var body fileRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	manuscriptID, err := uuid.Parse(body.ManuscriptID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid manuscript ID", nil)
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&body)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	request, err := h.accessService.FileRequest(requesterID, manuscriptID, &body.FileRequestInput)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyRequestCreated),
		"request": request,
	})
}

// PUT /access-requests/:id/approve
func (h *AccessHandler) ApproveRequest(c *gin.Context) {
	h.resolveRequest(c, true)
}

// PUT /access-requests/:id/reject
func (h *AccessHandler) RejectRequest(c *gin.Context) {
	h.resolveRequest(c, false)
}

func (h *AccessHandler) resolveRequest(c *gin.Context, approve bool) {
	lang := utils.GetLangFromContext(c)
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid request ID", nil)
		return
	}

	reviewerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.ResolveRequestInput
	// Both verbs accept an empty body; notes and overrides are optional.
	_ = c.ShouldBindJSON(&req)
	req.Approve = approve

	grant, err := h.accessService.ResolveRequest(requestID, reviewerID, &req)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	if !approve {
		utils.SuccessResponse(c, gin.H{
			"message": i18n.T(lang, i18n.KeyRequestRejected),
		})
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyRequestApproved),
		"grant":   grant,
	})
}

// PUT /grants/:id/revoke
func (h *AccessHandler) RevokeGrant(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	grantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid grant ID", nil)
		return
	}

	revokerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	// An empty body means an unexplained revocation, which is allowed.
	_ = c.ShouldBindJSON(&req)

	if err := h.accessService.Revoke(grantID, revokerID, req.Reason); err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyGrantRevoked),
	})
}

// GET /access-requests/pending
func (h *AccessHandler) GetPendingRequests(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	requests, total, err := h.accessService.PendingRequests(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(requests, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /access-requests
func (h *AccessHandler) GetMyRequests(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)

	requests, total, err := h.accessService.RequestsForUser(userID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(requests, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /manuscripts/:id/grants
func (h *AccessHandler) GetManuscriptGrants(c *gin.Context) {
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

	params := utils.GetPaginationParams(c)

	grants, total, err := h.accessService.GrantsForManuscript(manuscriptID, callerID, role, params)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(grants, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /grants/mine
func (h *AccessHandler) GetMyGrants(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	grants, err := h.accessService.GrantsForUser(userID)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"grants": grants,
	})
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return uuid.Nil, false
	}
	return userID, true
}

func currentUserRole(c *gin.Context) models.UserRole {
	roleStr, _ := utils.GetUserRoleFromContext(c)
	return models.UserRole(roleStr)
}
