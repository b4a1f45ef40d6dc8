package errors

import (
	"testing"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("score", "must be a number", "abc")

	if err.Field != "score" {
		t.Errorf("Expected field to be 'score', got '%s'", err.Field)
	}

	if err.Message != "must be a number" {
		t.Errorf("Expected message to be 'must be a number', got '%s'", err.Message)
	}

	if err.Value != "abc" {
		t.Errorf("Expected value to be 'abc', got '%v'", err.Value)
	}

	expected := "validation error on field 'score': must be a number"
	if err.Error() != expected {
		t.Errorf("Expected error message to be '%s', got '%s'", expected, err.Error())
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	if errs.Error() != "validation failed" {
		t.Errorf("Expected 'validation failed' for empty errors, got '%s'", errs.Error())
	}

	errs = append(errs, *NewValidationError("part", "must be part1, part2 or total", nil))
	expected := "validation failed: part must be part1, part2 or total"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for single error, got '%s'", expected, errs.Error())
	}

	errs = append(errs, *NewValidationError("value", "must be at most 2", nil))
	expected = "validation failed: 2 field errors"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for multiple errors, got '%s'", expected, errs.Error())
	}
}
