package ml

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedRequest = errors.New("malformed request")
	ErrMissingField     = errors.New("required field is missing")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrNonNumeric       = errors.New("value is not numeric")
	ErrLabelOutOfRange  = errors.New("classifier output out of label range")
)

type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("required field %s is missing", e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

type UnknownCategoryError struct {
	Field string
	Value any
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %v for field %s", e.Value, e.Field)
}

func (e *UnknownCategoryError) Unwrap() error { return ErrUnknownCategory }

type NonNumericError struct {
	Field string
}

func (e *NonNumericError) Error() string {
	return fmt.Sprintf("field %s could not be converted to a number", e.Field)
}

func (e *NonNumericError) Unwrap() error { return ErrNonNumeric }
