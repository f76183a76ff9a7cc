package domain

import "errors"

// TransactionState is the local payment lifecycle state of an order transaction.
type TransactionState string

const (
	StateOpen              TransactionState = "open"
	StateProcessing        TransactionState = "processing"
	StatePartiallyPaid     TransactionState = "partially_paid"
	StatePaid              TransactionState = "paid"
	StatePartiallyRefunded TransactionState = "partially_refunded"
	StateRefunded          TransactionState = "refunded"
	StateCancelled         TransactionState = "cancelled"
)

// Transition is a named state change requested on an order transaction.
type Transition string

const (
	TransitionCancel          Transition = "cancel"
	TransitionProcess         Transition = "process"
	TransitionPaid            Transition = "paid"
	TransitionRefund          Transition = "refund"
	TransitionRefundPartially Transition = "refund_partially"
)

var ErrTransitionNotAllowed = errors.New("transition_not_allowed")

// allowedTransitions maps a transition to the states it may leave from and the
// state it lands in. Refund transitions out of paid are the single sanctioned
// exit from an otherwise final state.
var allowedTransitions = map[Transition]struct {
	from map[TransactionState]bool
	to   TransactionState
}{
	TransitionCancel: {
		from: map[TransactionState]bool{
			StateOpen:              true,
			StateProcessing:        true,
			StatePartiallyPaid:     true,
			StatePartiallyRefunded: true,
		},
		to: StateCancelled,
	},
	TransitionProcess: {
		from: map[TransactionState]bool{
			StateOpen:          true,
			StatePartiallyPaid: true,
		},
		to: StateProcessing,
	},
	TransitionPaid: {
		from: map[TransactionState]bool{
			StateOpen:          true,
			StateProcessing:    true,
			StatePartiallyPaid: true,
		},
		to: StatePaid,
	},
	TransitionRefund: {
		from: map[TransactionState]bool{
			StatePaid:              true,
			StatePartiallyPaid:     true,
			StatePartiallyRefunded: true,
		},
		to: StateRefunded,
	},
	TransitionRefundPartially: {
		from: map[TransactionState]bool{
			StatePaid:              true,
			StatePartiallyPaid:     true,
			StatePartiallyRefunded: true,
		},
		to: StatePartiallyRefunded,
	},
}

// Apply computes the state a transition leads to. It returns changed=false when
// the transaction is already in the target state, which callers treat as an
// idempotent no-op.
func Apply(current TransactionState, t Transition) (TransactionState, bool, error) {
	rule, ok := allowedTransitions[t]
	if !ok {
		return current, false, ErrTransitionNotAllowed
	}
	if current == rule.to {
		return current, false, nil
	}
	if !rule.from[current] {
		return current, false, ErrTransitionNotAllowed
	}
	return rule.to, true, nil
}

// IsFinal reports whether the webhook core may still transition the state.
// Refund events carve out their own exception via the refundable check below.
func IsFinal(s TransactionState) bool {
	switch s {
	case StateCancelled, StatePaid, StateRefunded:
		return true
	default:
		return false
	}
}

// IsRefundable reports whether a successful gateway refund may move the state.
func IsRefundable(s TransactionState) bool {
	return s == StatePaid || s == StatePartiallyPaid
}
