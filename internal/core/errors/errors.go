// Package errors defines the analytics error taxonomy shared by the
// engines, the pipeline orchestrator, and the projection API.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors of the analytics pipeline. Engines return these
// wrapped with %w so callers classify failures with errors.Is instead
// of string matching.
var (
	// ErrInvalidRange marks a date range whose start is after its end.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrUnsupportedGranularity marks a granularity outside {day, week, month}.
	ErrUnsupportedGranularity = errors.New("unsupported granularity")

	// ErrInsufficientData marks a segmentation request with fewer active
	// customers than requested segments.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInsufficientHistory marks a forecast request whose training
	// series is shorter than two full seasonal cycles.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrCancelled marks a run aborted by the caller's cancellation signal.
	ErrCancelled = errors.New("run cancelled")

	// ErrStoreUnavailable marks a record store failure. Adapters wrap all
	// driver-level failures with this so the core never depends on driver
	// error types.
	ErrStoreUnavailable = errors.New("record store unavailable")

	// ErrInvalidConfig marks malformed run configuration, rejected before
	// a run starts.
	ErrInvalidConfig = errors.New("invalid run config")
)

// Error kind labels. These appear on failed pipeline runs and in API
// error responses.
const (
	KindInvalidRange           = "invalid_range"
	KindUnsupportedGranularity = "unsupported_granularity"
	KindInsufficientData       = "insufficient_data"
	KindInsufficientHistory    = "insufficient_history"
	KindCancelled              = "cancelled"
	KindStoreUnavailable       = "store_unavailable"
	KindInvalidConfig          = "invalid_config"
	KindInternal               = "internal_error"
)

// HTTP-surface labels used by the projection API for conditions that
// are not run failure kinds.
const (
	KindNotFound = "not_found"
	KindNotReady = "not_ready"
)

// Kind classifies err into one of the taxonomy labels. Context
// cancellation counts as cancelled whether or not it was re-wrapped.
// Anything unrecognized maps to KindInternal.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRange):
		return KindInvalidRange
	case errors.Is(err, ErrUnsupportedGranularity):
		return KindUnsupportedGranularity
	case errors.Is(err, ErrInsufficientData):
		return KindInsufficientData
	case errors.Is(err, ErrInsufficientHistory):
		return KindInsufficientHistory
	case errors.Is(err, ErrCancelled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, ErrInvalidConfig):
		return KindInvalidConfig
	default:
		return KindInternal
	}
}

// StageError attaches pipeline context to an engine failure: the stage
// that raised it, the inputs hash of the run, and the offending
// parameter when one is known. It unwraps to the underlying engine
// error so errors.Is still reaches the sentinel.
type StageError struct {
	Stage string
	Hash  string
	Param string
	Err   error
}

func (e *StageError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("stage %s (inputs %s, param %s): %v", e.Stage, e.Hash, e.Param, e.Err)
	}
	return fmt.Sprintf("stage %s (inputs %s): %v", e.Stage, e.Hash, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrorResponse is the error response body for projection API errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
