package entities

import (
	"errors"
	"fmt"
)

// Error taxonomy for the pipeline. Providers classify their failures into
// ErrProviderUnavailable (retryable at the next tier / partial wallet) or
// ErrProviderRejected (tier exhausted for the batch); only ErrStorageFailure
// is fatal to a refresh cycle.
var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderRejected    = errors.New("provider rejected request")
	ErrStorageFailure      = errors.New("storage failure")
	ErrRefreshInProgress   = errors.New("refresh already in progress")
)

// ComputationError marks a per-asset valuation failure (e.g. a malformed
// manual override). The affected asset gets zeroed derived fields; the rest
// of the batch proceeds.
type ComputationError struct {
	TokenAddress string
	Err          error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computation failed for %s: %v", e.TokenAddress, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}
