// Package errors provides structured error handling for codesnip.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, lock)
//   - 3XX: Network errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors (index, engine, search)
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryIO         Category = "IO"
	CategoryNetwork    Category = "NETWORK"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal means the process cannot continue.
	SeverityFatal Severity = "FATAL"
	// SeverityError means the operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning means a transient failure; retrying may succeed.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeFileTooLarge   = "ERR_204_FILE_TOO_LARGE"
	ErrCodeLockHeld       = "ERR_207_LOCK_HELD"

	ErrCodeListenFailed = "ERR_301_LISTEN_FAILED"

	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidQuery = "ERR_403_INVALID_QUERY"
	ErrCodeInvalidPath  = "ERR_406_INVALID_PATH"

	ErrCodeInternal         = "ERR_501_INTERNAL"
	ErrCodeSearchFailed     = "ERR_503_SEARCH_FAILED"
	ErrCodeIndexFailed      = "ERR_505_INDEX_FAILED"
	ErrCodeEngineInitFailed = "ERR_506_ENGINE_INIT_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	// "ERR_" followed by the three-digit number
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch {
	case code == ErrCodeConfigInvalid:
		return SeverityFatal
	case isRetryableCode(code):
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether a retry can succeed without user action.
// A failed engine init is retried on the next insert; a held lock clears when
// the other process exits.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEngineInitFailed, ErrCodeLockHeld:
		return true
	default:
		return false
	}
}
