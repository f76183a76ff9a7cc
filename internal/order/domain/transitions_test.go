package domain

import (
	"errors"
	"testing"
)

func TestApplyAllowedTransitions(t *testing.T) {
	cases := []struct {
		name       string
		from       TransactionState
		transition Transition
		want       TransactionState
	}{
		{"cancel open", StateOpen, TransitionCancel, StateCancelled},
		{"cancel processing", StateProcessing, TransitionCancel, StateCancelled},
		{"cancel partially paid", StatePartiallyPaid, TransitionCancel, StateCancelled},
		{"process open", StateOpen, TransitionProcess, StateProcessing},
		{"paid from open", StateOpen, TransitionPaid, StatePaid},
		{"paid from processing", StateProcessing, TransitionPaid, StatePaid},
		{"refund paid", StatePaid, TransitionRefund, StateRefunded},
		{"refund partially paid", StatePartiallyPaid, TransitionRefund, StateRefunded},
		{"refund after partial refund", StatePartiallyRefunded, TransitionRefund, StateRefunded},
		{"partial refund of paid", StatePaid, TransitionRefundPartially, StatePartiallyRefunded},
		{"repeated partial refund", StatePartiallyRefunded, TransitionRefundPartially, StatePartiallyRefunded},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, changed, err := Apply(tc.from, tc.transition)
			if err != nil {
				t.Fatalf("apply %s from %s: %v", tc.transition, tc.from, err)
			}
			if next != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, next)
			}
			if tc.from != tc.want && !changed {
				t.Fatalf("expected changed for %s from %s", tc.transition, tc.from)
			}
		})
	}
}

func TestApplySameStateIsNoOp(t *testing.T) {
	next, changed, err := Apply(StateCancelled, TransitionCancel)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if changed {
		t.Fatal("expected no-op when already in target state")
	}
	if next != StateCancelled {
		t.Fatalf("expected cancelled, got %s", next)
	}
}

func TestApplyRejectsTransitionsOutOfFinalStates(t *testing.T) {
	cases := []struct {
		from       TransactionState
		transition Transition
	}{
		{StateCancelled, TransitionPaid},
		{StateCancelled, TransitionProcess},
		{StatePaid, TransitionCancel},
		{StateRefunded, TransitionCancel},
		{StateRefunded, TransitionPaid},
		{StateRefunded, TransitionRefundPartially},
	}

	for _, tc := range cases {
		_, _, err := Apply(tc.from, tc.transition)
		if !errors.Is(err, ErrTransitionNotAllowed) {
			t.Fatalf("expected transition %s from %s rejected, got %v", tc.transition, tc.from, err)
		}
	}
}

func TestIsFinal(t *testing.T) {
	final := []TransactionState{StateCancelled, StatePaid, StateRefunded}
	for _, s := range final {
		if !IsFinal(s) {
			t.Fatalf("expected %s final", s)
		}
	}
	open := []TransactionState{StateOpen, StateProcessing, StatePartiallyPaid, StatePartiallyRefunded}
	for _, s := range open {
		if IsFinal(s) {
			t.Fatalf("expected %s not final", s)
		}
	}
}

func TestIsRefundable(t *testing.T) {
	if !IsRefundable(StatePaid) || !IsRefundable(StatePartiallyPaid) {
		t.Fatal("expected paid and partially_paid refundable")
	}
	if IsRefundable(StateOpen) || IsRefundable(StateRefunded) || IsRefundable(StateCancelled) {
		t.Fatal("expected open, refunded and cancelled not refundable")
	}
}
