package models

import "fmt"

type ErrorCategory string

const (
	ErrorCategoryInternal   ErrorCategory = "internal"
	ErrorCategoryExternal   ErrorCategory = "external"
	ErrorCategoryValidation ErrorCategory = "validation"
	ErrorCategoryTimeout    ErrorCategory = "timeout"
	ErrorCategoryNotFound   ErrorCategory = "not_found"
)

// AppError carries a stable code alongside the human message so log
// pipelines can aggregate failures by code.
type AppError struct {
	Category ErrorCategory          `json:"category"`
	Code     string                 `json:"code"`
	Message  string                 `json:"message"`
	Cause    error                  `json:"-"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newAppError(category ErrorCategory, code, message string) *AppError {
	return &AppError{Category: category, Code: code, Message: message}
}

func NewInternalError(code, message string) *AppError {
	return newAppError(ErrorCategoryInternal, code, message)
}

func NewExternalError(code, message string) *AppError {
	return newAppError(ErrorCategoryExternal, code, message)
}

func NewValidationError(code, message string) *AppError {
	return newAppError(ErrorCategoryValidation, code, message)
}

func NewTimeoutError(code, message string) *AppError {
	return newAppError(ErrorCategoryTimeout, code, message)
}

func NewNotFoundError(code, message string) *AppError {
	return newAppError(ErrorCategoryNotFound, code, message)
}

func ErrWorkflowNotFound() *AppError {
	return NewNotFoundError("WORKFLOW_NOT_FOUND", "Workflow not found")
}
