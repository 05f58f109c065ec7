package extract

import (
	"errors"
	"fmt"
)

// Common extraction errors
var (
	// ErrInvalidPDF is returned when the provided file is not a valid PDF
	// document or cannot be processed by the backend.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrProcessingFailed is returned when the extraction backend fails.
	ErrProcessingFailed = errors.New("document extraction failed")

	// ErrMissingCredentials is returned when Google Cloud credentials are
	// not configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials")

	// ErrInvalidConfiguration is returned when the extractor configuration
	// is incomplete.
	ErrInvalidConfiguration = errors.New("invalid extractor configuration")

	// ErrDocumentTooLarge is returned when the PDF exceeds size limits.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size limit")

	// ErrQuotaExceeded is returned when API quota limits are exceeded.
	ErrQuotaExceeded = errors.New("extraction API quota exceeded")
)

// ExtractionError wraps errors with context about the failed extraction.
type ExtractionError struct {
	// Op is the operation that failed (e.g. "Extract", "ProcessDocument").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("extract: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("extract: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is.
func (e *ExtractionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapExtractionError wraps an error as an ExtractionError if it isn't
// already one.
func WrapExtractionError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var extractErr *ExtractionError
	if errors.As(err, &extractErr) {
		return err
	}
	return &ExtractionError{Op: op, Err: err, Details: details}
}
