package errors

import (
	"errors"
	"fmt"
)

// ArchivistError is the structured error type for archivist.
// It carries enough context for logging, CLI presentation and tool responses.
type ArchivistError struct {
	// Code is the unique error code (e.g., "ERR_507_INDEX_NOT_BUILT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, External, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried by the caller.
	Retryable bool

	// Suggestion is an actionable suggestion for the operator.
	Suggestion string
}

// Error implements the error interface.
func (e *ArchivistError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ArchivistError) Unwrap() error {
	return e.Cause
}

// Is matches by code so that errors.Is works against sentinel values
// built with New.
func (e *ArchivistError) Is(target error) bool {
	if t, ok := target.(*ArchivistError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *ArchivistError) WithDetail(key, value string) *ArchivistError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the operator.
func (e *ArchivistError) WithSuggestion(suggestion string) *ArchivistError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ArchivistError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *ArchivistError {
	return &ArchivistError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an ArchivistError from an existing error.
// The error's message becomes the ArchivistError message.
func Wrap(code string, err error) *ArchivistError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is checks. Only the code is compared.
var (
	ErrIndexNotBuilt      = New(ErrCodeIndexNotBuilt, "lexical index has not been built", nil)
	ErrCorruptIndex       = New(ErrCodeCorruptIndex, "lexical index blob is corrupt", nil)
	ErrAdapterUnavailable = New(ErrCodeAdapterUnavailable, "vector adapter unavailable", nil)
	ErrMalformedDocument  = New(ErrCodeMalformedDocument, "malformed document", nil)
)

// IndexNotBuilt reports a query issued before any index was published.
func IndexNotBuilt() *ArchivistError {
	return New(ErrCodeIndexNotBuilt, "lexical index has not been built", nil).
		WithSuggestion("run 'archivist build <corpus.csv>' first")
}

// CorruptIndex reports a lexical blob that failed validation.
func CorruptIndex(path string, cause error) *ArchivistError {
	msg := "lexical index blob is corrupt"
	if cause != nil {
		msg = msg + ": " + cause.Error()
	}
	e := New(ErrCodeCorruptIndex, msg, cause).
		WithSuggestion("rebuild the index with 'archivist build'")
	if path != "" {
		e.WithDetail("path", path)
	}
	return e
}

// AdapterUnavailable reports a vector adapter call that produced no usable results.
func AdapterUnavailable(cause error) *ArchivistError {
	msg := "vector adapter unavailable"
	if cause != nil {
		msg = msg + ": " + cause.Error()
	}
	return New(ErrCodeAdapterUnavailable, msg, cause)
}

// MalformedDocument reports an ingested record that was skipped.
func MalformedDocument(id, reason string) *ArchivistError {
	return New(ErrCodeMalformedDocument, "malformed document: "+reason, nil).
		WithDetail("doc_id", id)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *ArchivistError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StorageError creates a database-related error.
func StorageError(message string, cause error) *ArchivistError {
	return New(ErrCodeDatabase, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *ArchivistError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *ArchivistError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error anywhere in the chain is a retryable ArchivistError.
func IsRetryable(err error) bool {
	var ae *ArchivistError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	var ae *ArchivistError
	if errors.As(err, &ae) {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an ArchivistError.
// Returns empty string if not an ArchivistError.
func GetCode(err error) string {
	var ae *ArchivistError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from an ArchivistError.
func GetCategory(err error) Category {
	var ae *ArchivistError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return ""
}
