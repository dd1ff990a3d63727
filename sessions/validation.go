package sessions

import (
	"fmt"
	"strings"
)

// FieldError is a single schema violation.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	return fmt.Sprintf("%s %s", f.Path, f.Message)
}

// ValidationErrors is the structured result of a failed schema check.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, f := range v {
		parts = append(parts, f.String())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add returns v with a field error appended.
func (v ValidationErrors) Add(path, message string) ValidationErrors {
	return append(v, FieldError{Path: path, Message: message})
}
