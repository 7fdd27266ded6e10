package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// SignError is a categorized failure from the signing pipeline, carrying the
// page and file it relates to when known
type SignError struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	Context     string    `json:"context,omitempty"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
	FilePath    string    `json:"file_path,omitempty"`
	PageNumber  int       `json:"page_number,omitempty"`
	Cause       error     `json:"-"`
}

// ErrorType represents different categories of signing failures
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeEmptyInput
	ErrorTypeDecodeFailure
	ErrorTypeWriteFailure
	ErrorTypeOutOfBounds
	ErrorTypeSegmentationUnavailable
	ErrorTypeNotFound
	ErrorTypeNotEntitled
	ErrorTypeInvalidInput
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// Error implements the error interface
func (e *SignError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *SignError) Unwrap() error {
	return e.Cause
}

// Is matches any *SignError of the same type, so callers can test with
// errors.Is(err, errors.New(ErrorTypeNotFound, ""))
func (e *SignError) Is(target error) bool {
	var t *SignError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeEmptyInput:
		return "EMPTY_INPUT"
	case ErrorTypeDecodeFailure:
		return "DECODE_FAILURE"
	case ErrorTypeWriteFailure:
		return "WRITE_FAILURE"
	case ErrorTypeOutOfBounds:
		return "OUT_OF_BOUNDS"
	case ErrorTypeSegmentationUnavailable:
		return "SEGMENTATION_UNAVAILABLE"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeNotEntitled:
		return "NOT_ENTITLED"
	case ErrorTypeInvalidInput:
		return "INVALID_INPUT"
	default:
		return "UNKNOWN"
	}
}

// GetSeverity returns the severity level for a given error type
func (et ErrorType) GetSeverity() ErrorSeverity {
	switch et {
	case ErrorTypeOutOfBounds:
		return SeverityInfo
	case ErrorTypeDecodeFailure, ErrorTypeSegmentationUnavailable, ErrorTypeNotEntitled:
		return SeverityWarning
	case ErrorTypeEmptyInput, ErrorTypeNotFound, ErrorTypeInvalidInput:
		return SeverityError
	case ErrorTypeWriteFailure:
		return SeverityCritical
	default:
		return SeverityError
	}
}

// IsRecoverable determines if an error type is generally recoverable
func (et ErrorType) IsRecoverable() bool {
	switch et {
	case ErrorTypeOutOfBounds:
		return true // resolved by clamping
	case ErrorTypeDecodeFailure:
		return true // the item is skipped
	case ErrorTypeSegmentationUnavailable:
		return true // falls back to the opaque original
	case ErrorTypeWriteFailure:
		return true // retryable
	default:
		return false
	}
}

// New creates a new SignError
func New(errorType ErrorType, message string) *SignError {
	return &SignError{
		Type:        errorType,
		Message:     message,
		Recoverable: errorType.IsRecoverable(),
		Timestamp:   time.Now(),
	}
}

// Newf creates a new SignError with a formatted message
func Newf(errorType ErrorType, format string, args ...any) *SignError {
	return New(errorType, fmt.Sprintf(format, args...))
}

// Wrap wraps err as a SignError of the given type. A nil err yields nil.
func Wrap(errorType ErrorType, message string, err error) *SignError {
	if err == nil {
		return nil
	}
	e := New(errorType, message)
	e.Cause = err
	return e
}

// WithContext adds context to an existing SignError
func (e *SignError) WithContext(context string) *SignError {
	e.Context = context
	return e
}

// WithFile adds file path information to an existing SignError
func (e *SignError) WithFile(filePath string) *SignError {
	e.FilePath = filePath
	return e
}

// WithPage adds page number information to an existing SignError
func (e *SignError) WithPage(pageNumber int) *SignError {
	e.PageNumber = pageNumber
	return e
}

// GetSeverity returns the severity of this specific error
func (e *SignError) GetSeverity() ErrorSeverity {
	return e.Type.GetSeverity()
}

// IsCritical returns true if this error is critical
func (e *SignError) IsCritical() bool {
	return e.GetSeverity() == SeverityCritical
}

// UserMessage returns a short message suitable for showing to a person
func (e *SignError) UserMessage() string {
	switch e.Type {
	case ErrorTypeEmptyInput:
		return "There is nothing to export. Add at least one page first."
	case ErrorTypeDecodeFailure:
		return "An image could not be read and was skipped."
	case ErrorTypeWriteFailure:
		return "The document could not be saved. Please try again."
	case ErrorTypeSegmentationUnavailable:
		return "Automatic background removal is unavailable; the original image is shown."
	case ErrorTypeNotFound:
		return "The requested item no longer exists."
	case ErrorTypeNotEntitled:
		return "Signing requires an active subscription."
	case ErrorTypeInvalidInput:
		return e.Message
	default:
		return "Something went wrong."
	}
}

// TypeOf returns the ErrorType of the first SignError in err's chain
func TypeOf(err error) ErrorType {
	var se *SignError
	if stderrors.As(err, &se) {
		return se.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err's chain contains a SignError of type t
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}

// ErrorCollection gathers the non-fatal failures of a batch operation, such
// as pages skipped during an import
type ErrorCollection struct {
	Errors   []*SignError `json:"errors"`
	Warnings []*SignError `json:"warnings"`
	FilePath string       `json:"file_path,omitempty"`
}

// NewErrorCollection creates a new error collection
func NewErrorCollection(filePath string) *ErrorCollection {
	return &ErrorCollection{
		Errors:   make([]*SignError, 0),
		Warnings: make([]*SignError, 0),
		FilePath: filePath,
	}
}

// Add adds an error to the appropriate collection based on severity
func (ec *ErrorCollection) Add(err *SignError) {
	if err == nil {
		return
	}
	if err.FilePath == "" && ec.FilePath != "" {
		err.FilePath = ec.FilePath
	}

	severity := err.GetSeverity()
	if severity == SeverityWarning || severity == SeverityInfo {
		ec.Warnings = append(ec.Warnings, err)
	} else {
		ec.Errors = append(ec.Errors, err)
	}
}

// HasCriticalErrors returns true if any critical errors exist
func (ec *ErrorCollection) HasCriticalErrors() bool {
	for _, err := range ec.Errors {
		if err.IsCritical() {
			return true
		}
	}
	return false
}

// Count returns the total number of errors and warnings
func (ec *ErrorCollection) Count() (errors, warnings int) {
	return len(ec.Errors), len(ec.Warnings)
}

// Err returns the collection as a joined error, or nil when it is empty
func (ec *ErrorCollection) Err() error {
	all := make([]error, 0, len(ec.Errors)+len(ec.Warnings))
	for _, e := range ec.Errors {
		all = append(all, e)
	}
	for _, e := range ec.Warnings {
		all = append(all, e)
	}
	return stderrors.Join(all...)
}

// Summary returns a text summary of all errors and warnings
func (ec *ErrorCollection) Summary() string {
	errorCount, warningCount := ec.Count()
	if errorCount == 0 && warningCount == 0 {
		return "No errors or warnings"
	}

	summary := fmt.Sprintf("Found %d error(s) and %d warning(s)", errorCount, warningCount)

	if ec.HasCriticalErrors() {
		summary += " (including critical errors)"
	}

	return summary
}
