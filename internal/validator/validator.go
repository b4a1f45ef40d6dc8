package validator

import (
	"reflect"
	"strings"

	"github.com/edulane/scoring-review-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator wraps the struct validator with the custom rules used by the
// scoring API.
type Validator struct {
	structValidator *validator.Validate
}

// New creates a new validator instance with all custom rules registered.
func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
	}
}

// Validate validates struct tags and returns the raw validator error, which
// callers convert via errors.ToValidationErrors for user-facing messages.
func (v *Validator) Validate(s interface{}) error {
	return v.structValidator.Struct(s)
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("score_part", validateScorePart)
	validate.RegisterValidation("importance_level", validateImportanceLevel)

	// Report json field names in error messages instead of Go field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateScorePart(fl validator.FieldLevel) bool {
	return models.ScorePart(fl.Field().String()).Valid()
}

func validateImportanceLevel(fl validator.FieldLevel) bool {
	return models.ImportanceLevel(fl.Field().String()).Valid()
}
