package model

import (
	"errors"
	"fmt"
)

// Error taxonomy for the pipeline. Provider clients and stages wrap these
// sentinels so the orchestrator can decide between retry, isolation and
// hard failure with errors.Is.
var (
	// ErrNotFound: unknown competitor or run id.
	ErrNotFound = errors.New("not found")

	// ErrProviderTransient: rate limit, timeout or network failure; eligible
	// for retry with backoff.
	ErrProviderTransient = errors.New("provider transient failure")

	// ErrProviderPermanent: auth or configuration failure; never retried.
	ErrProviderPermanent = errors.New("provider permanent failure")

	// ErrUnparseableResponse: language model output failed validation.
	// Retried, then converted into a stage failure.
	ErrUnparseableResponse = errors.New("unparseable model response")

	// ErrStore: persistence failure, always fatal to the current stage.
	ErrStore = errors.New("store failure")

	// ErrNotReady: export requested before the run reached completed/partial.
	ErrNotReady = errors.New("run not ready")

	// ErrCancelled: cancellation observed at a stage boundary.
	ErrCancelled = errors.New("run cancelled")
)

// ValidationError marks bad input to an exposed operation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Retryable reports whether err is worth another provider attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrProviderTransient) || errors.Is(err, ErrUnparseableResponse)
}
