package validator

import (
	apperrors "github.com/edulane/scoring-review-service/internal/errors"
)

// Re-export shared validation error types for convenience
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors
