// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"
	KeyAuthTokenExpired = "auth.token_expired"

	// Authorization
	KeyAccessDenied = "access.denied"

	// Access requests
	KeyRequestCreated   = "access_request.created"
	KeyRequestNotFound  = "access_request.not_found"
	KeyRequestApproved  = "access_request.approved"
	KeyRequestRejected  = "access_request.rejected"
	KeyRequestDuplicate = "access_request.duplicate_pending"

	// Grants
	KeyGrantRevoked  = "grant.revoked"
	KeyGrantNotFound = "grant.not_found"

	// Manuscripts and files
	KeyManuscriptCreated  = "manuscript.created"
	KeyManuscriptNotFound = "manuscript.not_found"
	KeyFileNotFound       = "file.not_found"
	KeyFileUploaded       = "file.uploaded"
	KeyFileUploadFailed   = "file.upload_failed"
	KeyDeliveryFailed     = "file.delivery_failed"

	// Watermark settings
	KeySettingsUpdated = "watermark_settings.updated"

	// Validation
	KeyValidationInvalid = "validation.invalid"
)
