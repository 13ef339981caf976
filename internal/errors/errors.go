package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Error types for the frame OCR pipeline
 *
 * Every failure that ends a run is a *PipelineError carrying an ErrorCode.
 * Callers match on the code with errors.Is against the Err* sentinels.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Configuration errors (detected before anything is opened)
	ErrorConfigurationInvalid ErrorCode = "CONFIGURATION_INVALID"

	// Source errors
	ErrorSourceNotFound   ErrorCode = "SOURCE_NOT_FOUND"
	ErrorSourceOpenFailed ErrorCode = "SOURCE_OPEN_FAILED"
	ErrorDecodeFailed     ErrorCode = "DECODE_FAILED"

	// Recognition errors
	ErrorOCRFailed ErrorCode = "OCR_FAILED"

	// Output errors
	ErrorOutputWriteFailed ErrorCode = "OUTPUT_WRITE_FAILED"
	ErrorArchiveFailed     ErrorCode = "ARCHIVE_FAILED"
)

// Sentinels for errors.Is matching by code.
var (
	ErrConfigurationInvalid = &PipelineError{Code: ErrorConfigurationInvalid}
	ErrSourceNotFound       = &PipelineError{Code: ErrorSourceNotFound}
	ErrSourceOpenFailed     = &PipelineError{Code: ErrorSourceOpenFailed}
	ErrDecodeFailed         = &PipelineError{Code: ErrorDecodeFailed}
	ErrOCRFailed            = &PipelineError{Code: ErrorOCRFailed}
	ErrOutputWriteFailed    = &PipelineError{Code: ErrorOutputWriteFailed}
	ErrArchiveFailed        = &PipelineError{Code: ErrorArchiveFailed}
)

// PipelineError represents a structured run failure
type PipelineError struct {
	Code      ErrorCode
	Message   string
	RunID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a PipelineError with the same code.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first PipelineError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// WithRunID stamps the run ID on err if it is a PipelineError without one.
func WithRunID(err error, runID string) error {
	var pe *PipelineError
	if stderrors.As(err, &pe) && pe.RunID == "" {
		pe.RunID = runID
	}
	return err
}

// Factory functions for common errors

func NewConfigurationError(field string, reason string) *PipelineError {
	return &PipelineError{
		Code:      ErrorConfigurationInvalid,
		Message:   fmt.Sprintf("invalid configuration: %s %s", field, reason),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"field": field,
		},
	}
}

func NewSourceNotFoundError(path string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorSourceNotFound,
		Message:   fmt.Sprintf("video file not found: %s", path),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"path": path,
		},
		Cause: cause,
	}
}

func NewSourceOpenError(path string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorSourceOpenFailed,
		Message:   fmt.Sprintf("could not open video: %s", path),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"path": path,
		},
		Cause: cause,
	}
}

func NewDecodeError(frameIndex int, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorDecodeFailed,
		Message:   fmt.Sprintf("decoding failed at frame %d", frameIndex),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"frame_index": frameIndex,
		},
		Cause: cause,
	}
}

func NewOCRFailedError(frameIndex int, region string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("OCR failed for region %q at frame %d", region, frameIndex),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"frame_index": frameIndex,
			"region":      region,
		},
		Cause: cause,
	}
}

func NewOutputWriteError(path string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorOutputWriteFailed,
		Message:   fmt.Sprintf("could not write output: %s", path),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"path": path,
		},
		Cause: cause,
	}
}

func NewArchiveError(runID string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorArchiveFailed,
		Message:   "failed to archive results",
		RunID:     runID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for structured logging and archival
func (e *PipelineError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	if e.RunID != "" {
		result["run_id"] = e.RunID
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
