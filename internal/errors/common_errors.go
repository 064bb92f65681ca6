package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeSourceRead     ErrorType = "SOURCE_READ"
	ErrTypeSchemaMismatch ErrorType = "SCHEMA_MISMATCH"
	ErrTypeSchemaMapping  ErrorType = "SCHEMA_MAPPING"
	ErrTypeConnection     ErrorType = "CONNECTION"
	ErrTypeLoad           ErrorType = "LOAD"
	ErrTypeConfig         ErrorType = "CONFIG"
	ErrTypeExport         ErrorType = "EXPORT"
)

// Pipeline stage names used to tag errors.
const (
	StageExtract = "extract"
	StageClean   = "clean"
	StageDerive  = "derive"
	StageMap     = "map"
	StageLoad    = "load"
	StageVerify  = "verify"
	StageExport  = "export"
	StageConfig  = "config"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Stage   string
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := e.Message
	if e.Stage != "" {
		msg = e.Stage + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *AppError of the same type. A target with an
// empty Type matches any AppError.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == "" || t.Type == e.Type
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, stage, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Stage:   stage,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Sentinel values for errors.Is checks.
var (
	ErrSourceRead     = &AppError{Type: ErrTypeSourceRead}
	ErrSchemaMismatch = &AppError{Type: ErrTypeSchemaMismatch}
	ErrSchemaMapping  = &AppError{Type: ErrTypeSchemaMapping}
	ErrConnection     = &AppError{Type: ErrTypeConnection}
	ErrLoad           = &AppError{Type: ErrTypeLoad}
	ErrConfig         = &AppError{Type: ErrTypeConfig}
	ErrExport         = &AppError{Type: ErrTypeExport}
)

// NewSourceReadError creates an extraction error
func NewSourceReadError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSourceRead, StageExtract, message, cause)
}

// NewSchemaMismatchError creates an error for missing source columns
func NewSchemaMismatchError(missing []string) *AppError {
	return NewAppError(ErrTypeSchemaMismatch, StageClean,
		fmt.Sprintf("source is missing required columns %v", missing), nil).
		WithContext("missing_columns", missing)
}

// NewSchemaMappingError creates a key-resolution error
func NewSchemaMappingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSchemaMapping, StageMap, message, cause)
}

// NewConnectionError creates a storage connectivity error
func NewConnectionError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConnection, StageLoad, message, cause)
}

// NewLoadError creates a storage write error
func NewLoadError(message string, cause error) *AppError {
	return NewAppError(ErrTypeLoad, StageLoad, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, StageConfig, message, cause)
}

// NewExportError creates a snapshot export error
func NewExportError(message string, cause error) *AppError {
	return NewAppError(ErrTypeExport, StageExport, message, cause)
}

// IsType reports whether err wraps an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Type == errType
}

// StageOf returns the stage recorded on the first AppError in err's chain.
func StageOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Stage
	}
	return ""
}
