// internal/apperrors/errors.go
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the access-control and delivery core. Services wrap
// these with fmt.Errorf("...: %w", err) so handlers can map them to HTTP
// statuses with errors.Is without parsing messages. Authorization outcomes
// are never collapsed to booleans: callers need the difference between
// "not found" and "forbidden".
var (
	ErrNotFound            = errors.New("resource not found")
	ErrForbidden           = errors.New("insufficient access")
	ErrInvalidLevel        = errors.New("invalid access level")
	ErrInvalidTransition   = errors.New("illegal state transition")
	ErrDuplicatePending    = errors.New("pending request already exists for this manuscript")
	ErrIntegrityMismatch   = errors.New("content integrity verification failed")
	ErrDecryptionFailed    = errors.New("ciphertext could not be decrypted")
	ErrRenderFailed        = errors.New("document could not be rendered for watermarking")
	ErrUnsupportedFileType = errors.New("file type does not support watermarking")
	ErrStorageUnavailable  = errors.New("blob storage unavailable")
)

// ErrAlreadyResolved is the illegal transition of resolving a request a
// second time. It matches both itself and ErrInvalidTransition under
// errors.Is.
var ErrAlreadyResolved = fmt.Errorf("%w: access request already resolved", ErrInvalidTransition)
