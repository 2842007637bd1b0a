package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// MongoErrorMessage describes document store failures.
	MongoErrorMessage = "mongo operation failed"
	// MongoNotFoundMessage describes a missing document.
	MongoNotFoundMessage = "document not found"
	// ReasoningErrorMessage describes failures of the text-generation service.
	ReasoningErrorMessage = "reasoning service call failed"
)

var (
	// ErrPipelineNotInitialized is returned when a run is attempted before the stage graph exists.
	ErrPipelineNotInitialized = errors.New("pipeline not initialized")
	// ErrUnparseableOutput marks model output that could not be turned into JSON.
	ErrUnparseableOutput = errors.New("unparseable model output")
	// ErrInvalidQuery marks a structured query that failed validation.
	ErrInvalidQuery = errors.New("invalid structured query")
	// ErrMissingQuery is returned when query execution has nothing to run.
	ErrMissingQuery = errors.New("missing structured query")
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// WrapReasoning wraps a failed completion call.
func WrapReasoning(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, ReasoningErrorMessage)
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// StatusOf returns the HTTP status carried by err, or 500 when there is none.
func StatusOf(err error) int {
	var app *AppError
	if errors.As(err, &app) {
		return app.Status
	}
	return http.StatusInternalServerError
}
