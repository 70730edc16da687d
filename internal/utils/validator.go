// internal/utils/validator.go
package utils

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func init() {
	validate = validator.New()
	validate.RegisterValidation("access_level", validateAccessLevel)
	validate.RegisterValidation("hex_color", validateHexColor)
	validate.RegisterValidation("watermark_position", validateWatermarkPosition)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validateAccessLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "view_metadata", "view_content", "download":
		return true
	}
	return false
}

func validateHexColor(fl validator.FieldLevel) bool {
	return hexColorPattern.MatchString(fl.Field().String())
}

func validateWatermarkPosition(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "diagonal", "center", "footer", "tiled":
		return true
	}
	return false
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "access_level":
		return "Access level must be one of view_metadata, view_content, download"
	case "hex_color":
		return "Color must be a #rrggbb hex value"
	case "watermark_position":
		return "Position must be one of diagonal, center, footer, tiled"
	default:
		return e.Field() + " is invalid"
	}
}
