package services

import (
	"errors"
	"fmt"

	apperrors "github.com/edulane/scoring-review-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")
	ErrBadRequest       = errors.New("bad request")

	// Document errors
	ErrQuestionNotFound = errors.New("question not found")
	ErrNoActiveDocument = errors.New("no active question document")

	// Import errors
	ErrUnsupportedFileFormat = errors.New("unsupported file format")

	// Persistence boundary errors
	ErrScoreSaveFailed   = errors.New("failed to save teacher scores")
	ErrScoreSubmitFailed = errors.New("failed to submit teacher scores")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// ParseErrorKind classifies why an import was rejected.
type ParseErrorKind string

const (
	// ParseMalformedInput covers structural problems: missing header, no data
	// rows, required fields empty.
	ParseMalformedInput ParseErrorKind = "malformed_input"
	// ParseTypeCoercion covers fields that should be numeric but are not.
	ParseTypeCoercion ParseErrorKind = "type_coercion"
)

// ParseError rejects an entire import. Row is 1-based and counts the header,
// matching what a teacher sees in their spreadsheet tool; Row 0 means the
// failure is not tied to a single row.
type ParseError struct {
	Kind    ParseErrorKind `json:"kind"`
	Row     int            `json:"row,omitempty"`
	Column  string         `json:"column,omitempty"`
	Message string         `json:"message"`
	Value   string         `json:"value,omitempty"`
}

func (pe *ParseError) Error() string {
	if pe.Row > 0 && pe.Column != "" {
		return fmt.Sprintf("row %d: %s %s", pe.Row, pe.Column, pe.Message)
	}
	if pe.Row > 0 {
		return fmt.Sprintf("row %d: %s", pe.Row, pe.Message)
	}
	return pe.Message
}

func NewMalformedInputError(row int, column, message, value string) *ParseError {
	return &ParseError{
		Kind:    ParseMalformedInput,
		Row:     row,
		Column:  column,
		Message: message,
		Value:   value,
	}
}

func NewTypeCoercionError(row int, column, value string) *ParseError {
	return &ParseError{
		Kind:    ParseTypeCoercion,
		Row:     row,
		Column:  column,
		Message: "must be a number",
		Value:   value,
	}
}

// UnknownResponseError reports a score edit against an id that is not part of
// the active document. The UI only offers ids it rendered, so hitting this is
// a caller contract violation rather than user error.
type UnknownResponseError struct {
	ResponseID int `json:"response_id"`
}

func (ue *UnknownResponseError) Error() string {
	return fmt.Sprintf("unknown response id %d in active document", ue.ResponseID)
}

// ===== ERROR HELPERS =====

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrQuestionNotFound) {
		return true
	}
	var ue *UnknownResponseError
	return errors.As(err, &ue)
}

// IsParseError checks if error is an import rejection
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve ValidationErrors
	return errors.As(err, &ve)
}
