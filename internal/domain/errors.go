package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound indicates the quiz does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a referenced question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSubmissionNotFound indicates the submission does not exist.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrAlreadySubmitted is returned when a (quiz, user) pair already has a
	// submission on record. Expected and user-facing, not fatal.
	ErrAlreadySubmitted = errors.New("user has already submitted this quiz")
	// ErrDuplicateAnswer is returned when one answer set references the same
	// question more than once.
	ErrDuplicateAnswer = errors.New("duplicate question in answer set")
	// ErrNotCreator is returned when a caller asks for creator-only data.
	ErrNotCreator = errors.New("only the quiz creator may access this resource")
)

// ValidationError rejects malformed quiz or question input at write time.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GenerationError wraps an upstream AI failure, preserving the raw response
// text for diagnostics. Distinct from validation errors so callers can tell
// "your input is bad" apart from "the generator misbehaved".
type GenerationError struct {
	Msg string
	Raw string
	Err error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsGeneration reports whether err is a GenerationError.
func IsGeneration(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
