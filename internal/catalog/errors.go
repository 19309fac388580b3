package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrCourseNotFound = errors.New("course not found")
	// ErrInvalidCourse matches every *ValidationError.
	ErrInvalidCourse = errors.New("invalid course")
	ErrNoActor       = errors.New("an authenticated user is required")
)

// ValidationError reports client input rejected before any store call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidCourse
}
