package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorType_Constants(t *testing.T) {
	tests := []struct {
		name     string
		errType  ErrorType
		expected string
	}{
		{name: "source read", errType: ErrTypeSourceRead, expected: "SOURCE_READ"},
		{name: "schema mismatch", errType: ErrTypeSchemaMismatch, expected: "SCHEMA_MISMATCH"},
		{name: "schema mapping", errType: ErrTypeSchemaMapping, expected: "SCHEMA_MAPPING"},
		{name: "connection", errType: ErrTypeConnection, expected: "CONNECTION"},
		{name: "load", errType: ErrTypeLoad, expected: "LOAD"},
		{name: "config", errType: ErrTypeConfig, expected: "CONFIG"},
		{name: "export", errType: ErrTypeExport, expected: "EXPORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.errType))
		})
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name: "error without cause or stage",
			appError: &AppError{
				Type:    ErrTypeConfig,
				Message: "invalid driver",
			},
			wantMessage: "[CONFIG] invalid driver",
		},
		{
			name: "error with stage",
			appError: &AppError{
				Type:    ErrTypeSchemaMismatch,
				Stage:   StageClean,
				Message: "source is missing required columns [budget]",
			},
			wantMessage: "[SCHEMA_MISMATCH] clean: source is missing required columns [budget]",
		},
		{
			name: "error with stage and cause",
			appError: &AppError{
				Type:    ErrTypeConnection,
				Stage:   StageLoad,
				Message: "failed to reach warehouse",
				Cause:   fmt.Errorf("connection refused"),
			},
			wantMessage: "[CONNECTION] load: failed to reach warehouse: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("disk gone")
	err := NewSourceReadError("failed to open workbook", cause)

	assert.Same(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
	assert.Nil(t, NewSchemaMismatchError([]string{"budget"}).Unwrap())
}

func TestAppError_Is(t *testing.T) {
	wrapped := fmt.Errorf("run failed: %w", NewLoadError("insert failed", errors.New("duplicate key")))

	assert.True(t, errors.Is(wrapped, ErrLoad))
	assert.False(t, errors.Is(wrapped, ErrConnection))
	assert.True(t, errors.Is(wrapped, &AppError{}), "empty type matches any AppError")
}

func TestAppError_WithContext(t *testing.T) {
	appError := &AppError{Type: ErrTypeLoad, Message: "insert failed"}

	result := appError.WithContext("table", "DimGenre")

	assert.Same(t, appError, result)
	require.Contains(t, result.Context, "table")
	assert.Equal(t, "DimGenre", result.Context["table"])
}

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name      string
		err       *AppError
		wantType  ErrorType
		wantStage string
	}{
		{"source read", NewSourceReadError("x", cause), ErrTypeSourceRead, StageExtract},
		{"schema mapping", NewSchemaMappingError("x", cause), ErrTypeSchemaMapping, StageMap},
		{"connection", NewConnectionError("x", cause), ErrTypeConnection, StageLoad},
		{"load", NewLoadError("x", cause), ErrTypeLoad, StageLoad},
		{"config", NewConfigError("x", cause), ErrTypeConfig, StageConfig},
		{"export", NewExportError("x", cause), ErrTypeExport, StageExport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantStage, tt.err.Stage)
			assert.Equal(t, "x", tt.err.Message)
			assert.Same(t, cause, tt.err.Cause)
			assert.NotNil(t, tt.err.Context)
		})
	}
}

func TestNewSchemaMismatchError(t *testing.T) {
	err := NewSchemaMismatchError([]string{"budget", "genre"})

	assert.Equal(t, ErrTypeSchemaMismatch, err.Type)
	assert.Equal(t, StageClean, err.Stage)
	assert.Equal(t, []string{"budget", "genre"}, err.Context["missing_columns"])
	assert.Contains(t, err.Error(), "budget")
}

func TestIsTypeAndStageOf(t *testing.T) {
	err := fmt.Errorf("pipeline: %w", NewSchemaMappingError("orphan key", nil))

	assert.True(t, IsType(err, ErrTypeSchemaMapping))
	assert.False(t, IsType(err, ErrTypeLoad))
	assert.False(t, IsType(errors.New("plain"), ErrTypeLoad))
	assert.False(t, IsType(nil, ErrTypeLoad))

	assert.Equal(t, StageMap, StageOf(err))
	assert.Equal(t, "", StageOf(errors.New("plain")))
}
