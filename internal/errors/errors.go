// Package errors provides structured error types for the logvault engine.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryConfig    ErrorCategory = "CONFIG"
	ErrCategoryHotStore  ErrorCategory = "HOTSTORE"
	ErrCategoryColdStore ErrorCategory = "COLDSTORE"
	ErrCategoryCodec     ErrorCategory = "CODEC"
	ErrCategoryIntegrity ErrorCategory = "INTEGRITY"
	ErrCategoryArchive   ErrorCategory = "ARCHIVE"
	ErrCategoryRetrieval ErrorCategory = "RETRIEVAL"
	ErrCategoryRetention ErrorCategory = "RETENTION"
	ErrCategoryInternal  ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Config codes. Config errors are fatal at startup.
	CodeInvalidConfig = "INVALID_CONFIG"
	CodeMissingBucket = "MISSING_BUCKET"

	// Hot store codes
	CodeQueryFailed      = "QUERY_FAILED"
	CodeDeleteFailed     = "DELETE_FAILED"
	CodeInsertFailed     = "INSERT_FAILED"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"

	// Cold store codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeListFailed     = "LIST_FAILED"
	CodeTierFailed     = "TIER_FAILED"
	CodeBlobNotFound   = "BLOB_NOT_FOUND"

	// Codec codes
	CodeEncodeFailed = "ENCODE_FAILED"
	CodeDecodeFailed = "DECODE_FAILED"
	CodeBadFrame     = "BAD_FRAME"

	// Integrity codes
	CodeDigestMismatch = "DIGEST_MISMATCH"

	// Archive codes
	CodeLockHeld          = "LOCK_HELD"
	CodeVerifyFailed      = "VERIFY_FAILED"
	CodeUnarchivedRecords = "UNARCHIVED_RECORDS"

	// Retrieval/retention codes
	CodeBadMetadata = "BAD_METADATA"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// VaultError is the structured error type used throughout the engine.
type VaultError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *VaultError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *VaultError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *VaultError) Is(target error) bool {
	var t *VaultError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new VaultError.
func New(category ErrorCategory, code, message string) *VaultError {
	return &VaultError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new VaultError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *VaultError {
	return &VaultError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *VaultError) WithDetails(details map[string]interface{}) *VaultError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
// Retryable errors correspond to transient store unavailability; the
// scheduler may safely re-invoke the failed operation.
func IsRetryable(err error) bool {
	var ve *VaultError
	if errors.As(err, &ve) {
		return ve.Retryable
	}
	return false
}

// IsIntegrity reports whether the error chain contains a digest mismatch.
func IsIntegrity(err error) bool {
	return GetCategory(err) == ErrCategoryIntegrity
}

// IsNotFound reports whether the error chain is a missing-blob signal.
func IsNotFound(err error) bool {
	return GetCode(err) == CodeBlobNotFound
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a VaultError.
func GetCategory(err error) ErrorCategory {
	var ve *VaultError
	if errors.As(err, &ve) {
		return ve.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a VaultError.
func GetCode(err error) string {
	var ve *VaultError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// isRetryable determines if an error code represents a transient condition.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryColdStore && code == CodeUploadFailed:
		return true
	case category == ErrCategoryColdStore && code == CodeDownloadFailed:
		return true
	case category == ErrCategoryColdStore && code == CodeListFailed:
		return true
	case category == ErrCategoryHotStore && code == CodeQueryFailed:
		return true
	case category == ErrCategoryHotStore && code == CodeDeleteFailed:
		return true
	case category == ErrCategoryHotStore && code == CodeStoreUnavailable:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewConfigError(code, message string) *VaultError {
	return New(ErrCategoryConfig, code, message)
}

func NewHotStoreError(code, message string, cause error) *VaultError {
	return Wrap(ErrCategoryHotStore, code, message, cause)
}

func NewColdStoreError(code, message string, cause error) *VaultError {
	return Wrap(ErrCategoryColdStore, code, message, cause)
}

func NewCodecError(code, message string, cause error) *VaultError {
	return Wrap(ErrCategoryCodec, code, message, cause)
}

func NewIntegrityError(message string) *VaultError {
	return New(ErrCategoryIntegrity, CodeDigestMismatch, message)
}

func NewInternalError(message string, cause error) *VaultError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
