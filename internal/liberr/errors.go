// Package liberr provides a lightweight structured error type for
// category-based classification and retry semantics across the sync and
// notify pipelines.
package liberr

import (
	"errors"
	"fmt"
)

// Category classifies an error for reporting and retry decisions.
type Category string

const (
	// User-facing configuration and input errors
	CategoryConfig     Category = "config"
	CategoryValidation Category = "validation"

	// External system integration errors
	CategoryBackend Category = "backend"
	CategoryStorage Category = "storage"
	CategoryMail    Category = "mail"
	CategoryGit     Category = "git"

	// Pipeline errors
	CategoryRender    Category = "render"
	CategorySelection Category = "selection"
	CategoryRuntime   Category = "runtime"
	CategoryInternal  Category = "internal"
)

// Severity indicates how critical an error is.
type Severity string

const (
	SeverityFatal   Severity = "fatal"   // Stops the run
	SeverityError   Severity = "error"   // Error, but the run may continue
	SeverityWarning Severity = "warning" // Continues with degraded output
)

// Error is a structured error with category, retryability, and context.
type Error struct {
	Category  Category      `json:"category"`
	Severity  Severity      `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for an Error.
type ContextFields map[string]any

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new Error.
func New(category Category, severity Severity, message string) *Error {
	return &Error{Category: category, Severity: severity, Message: message}
}

// Wrap creates a new Error that wraps an existing error.
func Wrap(err error, category Category, severity Severity, message string) *Error {
	return &Error{Category: category, Severity: severity, Message: message, Cause: err}
}

// IsCategory checks if an error belongs to a specific category.
func IsCategory(err error, category Category) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Category == category
	}
	return false
}

// IsRetryable checks if an error is marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or CategoryInternal for
// foreign errors.
func GetCategory(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryInternal
}
