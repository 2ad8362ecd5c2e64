// Package domain holds the transaction entities and the canonical status
// vocabulary every provider-native status is mapped into.
package domain

// Status is the canonical, provider-independent transaction status.
type Status string

const (
	StatusPending       Status = "pending"
	StatusProcessing    Status = "processing"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
	StatusPartialRefund Status = "partial_refund"
)

// IsTerminal reports whether a status can no longer change through
// reconciliation. partial_refund is reached from completed only, via an
// explicit refund action.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartialRefund:
		return true
	default:
		return false
	}
}

// TransitionDecision is the outcome of checking a status transition before
// writing it. Duplicate callbacks and callback/poll races are the normal
// case, so "skip" outcomes are not errors.
type TransitionDecision int

const (
	// TransitionApply means the write should proceed.
	TransitionApply TransitionDecision = iota
	// TransitionSkip means current already equals the target, or the target
	// is a stale non-terminal signal for an already-terminal record.
	TransitionSkip
	// TransitionConflict means the target would re-assert a different
	// terminal state over an existing one. Must be logged, never applied.
	TransitionConflict
)

// DecideTransition applies the shared guard rules: same-status writes are
// no-ops, terminal states never revert, and conflicting terminal states are
// rejected. The completed -> partial_refund edge is the one sanctioned
// terminal-to-terminal move, driven by refund completion.
func DecideTransition(current, target Status) TransitionDecision {
	if current == target {
		return TransitionSkip
	}
	if !current.IsTerminal() {
		return TransitionApply
	}
	if current == StatusCompleted && target == StatusPartialRefund {
		return TransitionApply
	}
	if target.IsTerminal() {
		return TransitionConflict
	}
	// Late pending/processing signal for a closed record.
	return TransitionSkip
}
