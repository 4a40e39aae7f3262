// Package errors provides structured error handling for archivist.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (index blob, entity database)
//   - 3XX: External collaborator errors (vector adapter, embedder)
//   - 4XX: Validation errors (queries, date ranges, ingested rows)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates index and database persistence errors.
	CategoryStorage Category = "STORAGE"
	// CategoryExternal indicates failures of optional external collaborators.
	CategoryExternal Category = "EXTERNAL"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeFileNotFound = "ERR_201_FILE_NOT_FOUND"
	ErrCodeDatabase     = "ERR_202_DATABASE"
	ErrCodeLockHeld     = "ERR_203_LOCK_HELD"
	ErrCodeCorruptIndex = "ERR_205_CORRUPT_INDEX"
	ErrCodeIndexVersion = "ERR_206_INDEX_VERSION"

	// External errors (300-399)
	ErrCodeAdapterTimeout     = "ERR_301_ADAPTER_TIMEOUT"
	ErrCodeEmbeddingFailed    = "ERR_302_EMBEDDING_FAILED"
	ErrCodeAdapterUnavailable = "ERR_304_ADAPTER_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput       = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch  = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeInvalidGranularity = "ERR_403_INVALID_GRANULARITY"
	ErrCodeInvalidDate        = "ERR_404_INVALID_DATE"
	ErrCodeMalformedDocument  = "ERR_407_MALFORMED_DOCUMENT"

	// Internal errors (500-599)
	ErrCodeInternal      = "ERR_501_INTERNAL"
	ErrCodeSearchFailed  = "ERR_503_SEARCH_FAILED"
	ErrCodeIndexFailed   = "ERR_505_INDEX_FAILED"
	ErrCodeIndexNotBuilt = "ERR_507_INDEX_NOT_BUILT"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryExternal
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeIndexVersion:
		return SeverityFatal
	}

	// External collaborators degrade the result instead of failing it.
	if categoryFromCode(code) == CategoryExternal {
		return SeverityWarning
	}
	if code == ErrCodeMalformedDocument {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeAdapterTimeout, ErrCodeEmbeddingFailed, ErrCodeLockHeld:
		return true
	default:
		return false
	}
}
