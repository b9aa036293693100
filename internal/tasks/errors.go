package tasks

import (
	"errors"
	"strings"
)

var (
	ErrNotFound   = errors.New("task not found")
	ErrIDMismatch = errors.New("id does not match task to update")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed the presence checks.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func validateInput(in Input) error {
	var errs []FieldError

	if strings.TrimSpace(in.Title) == "" {
		errs = append(errs, FieldError{
			Field:   "title",
			Message: "The Title field is required.",
		})
	}
	if strings.TrimSpace(in.Description) == "" {
		errs = append(errs, FieldError{
			Field:   "description",
			Message: "The Description field is required.",
		})
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
