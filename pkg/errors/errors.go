package errors

import (
	"errors"
	"fmt"
)

// ErrorType defines the failure categories of the pipeline
type ErrorType string

const (
	ErrorTypeConfig    ErrorType = "CONFIG"
	ErrorTypeDiscovery ErrorType = "DISCOVERY"
	ErrorTypeProvision ErrorType = "PROVISION"
	ErrorTypeStatement ErrorType = "STATEMENT"
	ErrorTypeBucket    ErrorType = "BUCKET"
)

// AppError is the custom error type for the application
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work
func (e *AppError) Unwrap() error {
	return e.Err
}

// Constructor functions for different error types

// NewConfig creates a configuration error
func NewConfig(message string, err error) error {
	return &AppError{Type: ErrorTypeConfig, Message: message, Err: err}
}

// NewDiscovery creates an object discovery error
func NewDiscovery(message string, err error) error {
	return &AppError{Type: ErrorTypeDiscovery, Message: message, Err: err}
}

// NewProvision creates a provisioning error
func NewProvision(message string, err error) error {
	return &AppError{Type: ErrorTypeProvision, Message: message, Err: err}
}

// NewStatement creates a SQL statement execution error
func NewStatement(message string, err error) error {
	return &AppError{Type: ErrorTypeStatement, Message: message, Err: err}
}

// NewBucket creates a manifest bucket validation error
func NewBucket(message string, err error) error {
	return &AppError{Type: ErrorTypeBucket, Message: message, Err: err}
}

// Type checking functions

// IsConfig checks if an error is a configuration error
func IsConfig(err error) bool {
	return hasType(err, ErrorTypeConfig)
}

// IsDiscovery checks if an error is an object discovery error
func IsDiscovery(err error) bool {
	return hasType(err, ErrorTypeDiscovery)
}

// IsProvision checks if an error is a provisioning error
func IsProvision(err error) bool {
	return hasType(err, ErrorTypeProvision)
}

// IsStatement checks if an error is a statement execution error
func IsStatement(err error) bool {
	return hasType(err, ErrorTypeStatement)
}

// IsBucket checks if an error is a bucket validation error
func IsBucket(err error) bool {
	return hasType(err, ErrorTypeBucket)
}

func hasType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}
