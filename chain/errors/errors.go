// Package errors defines the error kinds used across chain/*, per
// spec.md §7. SNSE methods fail fast with one of these, never leaving
// the current snapshot partially mutated; PulseStateMachine never
// surfaces an error to its caller (ProtocolTimeout is handled purely
// by local state transition, see chain/pulse).
package errors

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/syssiproject/oxen-core-sub000/consensus-types/primitives"
)

// Is, As and Wrap are re-exported so callers don't need a second
// import for the common pkg/errors helpers.
var (
	Is   = errors.Is
	As   = errors.As
	Wrap = errors.Wrap
)

// ConsensusMismatch means a block or tx violates a consensus rule; the
// caller must reject the block.
type ConsensusMismatch struct {
	Height primitives.Height
	Reason string
}

func (e *ConsensusMismatch) Error() string {
	return fmt.Sprintf("consensus mismatch at height %s: %s", e.Height, e.Reason)
}

// NewConsensusMismatch constructs a ConsensusMismatch with the
// offending height and a human-readable reason for the log line.
func NewConsensusMismatch(h primitives.Height, reason string) *ConsensusMismatch {
	return &ConsensusMismatch{Height: h, Reason: reason}
}

// InvalidRegistration is thrown during registration tx parsing or
// validation; the caller rejects only that tx.
type InvalidRegistration struct {
	TxHash primitives.TxHash
	Reason string
}

func (e *InvalidRegistration) Error() string {
	return fmt.Sprintf("invalid registration (tx %s): %s", e.TxHash, e.Reason)
}

// InternalLogicError marks an invariant violated by a programmer bug.
// Callers should treat this as fatal rather than attempt recovery.
type InternalLogicError struct {
	Reason string
}

func (e *InternalLogicError) Error() string {
	return fmt.Sprintf("internal logic error: %s", e.Reason)
}

// NewInternalLogicError constructs an InternalLogicError.
func NewInternalLogicError(reason string) *InternalLogicError {
	return &InternalLogicError{Reason: reason}
}

// ProtocolTimeout means a Pulse stage ended without quorum. It is used
// internally by chain/pulse to drive round-advance logic and is never
// returned to a PulseStateMachine caller.
type ProtocolTimeout struct {
	Height primitives.Height
	Round  primitives.Round
	Stage  string
}

func (e *ProtocolTimeout) Error() string {
	return fmt.Sprintf("pulse stage %s timed out at height %s round %d", e.Stage, e.Height, e.Round)
}

// DBError wraps a ChainStore read/write failure. Fatal; surfaced to
// the caller unchanged (via pkg/errors.Wrap for stack context).
type DBError struct {
	Op  string
	Err error
}

func (e *DBError) Error() string { return fmt.Sprintf("db error during %s: %v", e.Op, e.Err) }
func (e *DBError) Unwrap() error { return e.Err }

// NewDBError wraps err as a DBError for operation op.
func NewDBError(op string, err error) *DBError {
	return &DBError{Op: op, Err: err}
}
