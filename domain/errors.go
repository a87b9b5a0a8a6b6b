package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound is returned when an id is absent from the canonical
	// collection, including stale references left over from a board reload.
	ErrTaskNotFound = errors.New("task not found")

	// ErrProposalNotFound is returned when a queue operation names a
	// proposal that was already decided or invalidated.
	ErrProposalNotFound = errors.New("proposal not found")

	// ErrMutationInFlight rejects a second mutation for an id whose prior
	// mutation has not resolved yet.
	ErrMutationInFlight = errors.New("mutation already in flight for this task")

	// ErrProposalInFlight rejects approve/reject on a proposal whose prior
	// decision call has not resolved yet.
	ErrProposalInFlight = errors.New("proposal decision already in flight")

	// ErrExchangeInFlight rejects an ask while a prior ask for the same
	// scope is still outstanding.
	ErrExchangeInFlight = errors.New("assistant exchange already in flight for this scope")

	// ErrOperationTimeout marks the deletion safety valve: the remote call
	// outlived its confirmation window. The call itself is not cancelled
	// and may still resolve.
	ErrOperationTimeout = errors.New("operation timed out awaiting confirmation")
)

// ValidationError rejects input before any remote call is dispatched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a pre-dispatch validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConnectivityError wraps a transport-level failure against a remote
// collaborator. Callers degrade rather than discard loaded state.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: remote unreachable: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// IsConnectivity reports whether err stems from an unreachable remote.
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

// PipelinePhase identifies which ingestion phase failed.
type PipelinePhase string

const (
	PhaseIngest PipelinePhase = "ingest"
	PhaseEnrich PipelinePhase = "enrich"
)

// PipelineError tags a context-ingestion failure with the phase that caused
// it, so an enrichment failure after a successful ingest is diagnosable as
// such and never mistaken for a full ingest failure.
type PipelineError struct {
	Phase PipelinePhase
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("context pipeline %s failed: %v", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// IsPartialPipelineFailure reports whether ingestion succeeded but
// enrichment did not.
func IsPartialPipelineFailure(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Phase == PhaseEnrich
}
