package lifecycle

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name  string
		from  State
		to    State
		allow bool
	}{
		{name: "pending to evaluating", from: StatePending, to: StateEvaluating, allow: true},
		{name: "pending straight to accepted", from: StatePending, to: StateAccepted, allow: true},
		{name: "pending to rejected", from: StatePending, to: StateRejected, allow: true},
		{name: "evaluating to accepted", from: StateEvaluating, to: StateAccepted, allow: true},
		{name: "evaluating to rejected", from: StateEvaluating, to: StateRejected, allow: true},
		{name: "accepted is terminal", from: StateAccepted, to: StateRejected, allow: false},
		{name: "rejected is terminal", from: StateRejected, to: StateAccepted, allow: false},
		{name: "withdrawn is terminal", from: StateWithdrawn, to: StateEvaluating, allow: false},
		{name: "draft cannot be answered", from: StateDraft, to: StateAccepted, allow: false},
		{name: "answer cannot target withdrawn", from: StatePending, to: StateWithdrawn, allow: false},
		{name: "answer cannot target pending", from: StateEvaluating, to: StatePending, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransition(tc.from, tc.to); got != tc.allow {
				t.Fatalf("CanTransition(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.allow)
			}
		})
	}
}

func TestCanWithdraw(t *testing.T) {
	allowed := map[State]bool{
		StatePending:    true,
		StateEvaluating: true,
		StateDraft:      false,
		StateAccepted:   false,
		StateRejected:   false,
		StateWithdrawn:  false,
	}
	for state, want := range allowed {
		if got := CanWithdraw(state); got != want {
			t.Errorf("CanWithdraw(%q) = %v, want %v", state, got, want)
		}
	}
}

func TestFilterDefaultExcludesWithdrawn(t *testing.T) {
	var f Filter

	if !f.Match(StatePending, true) {
		t.Error("default filter should include pending questions")
	}
	if !f.Match(StateRejected, true) {
		t.Error("default filter should include rejected questions")
	}
	if f.Match(StateWithdrawn, true) {
		t.Error("default filter should exclude withdrawn questions")
	}
	if f.Match(StatePending, false) {
		t.Error("default filter should exclude unpublished questions")
	}
	if f.Match(StateDraft, true) {
		t.Error("default filter should exclude drafts")
	}
}

func TestFilterExplicitStates(t *testing.T) {
	f := Filter{States: []State{StateWithdrawn}}
	if !f.Match(StateWithdrawn, true) {
		t.Error("explicit state filter should include withdrawn")
	}
	if f.Match(StateAccepted, true) {
		t.Error("explicit state filter should exclude other states")
	}
}

func TestFilterExceptRejected(t *testing.T) {
	f := Filter{ExceptRejected: true}
	if f.Match(StateRejected, true) {
		t.Error("except_rejected filter should drop rejected questions")
	}
	if !f.Match(StateAccepted, true) {
		t.Error("except_rejected filter should keep accepted questions")
	}
	if f.Match(StateWithdrawn, true) {
		t.Error("except_rejected filter still drops withdrawn by default")
	}
}
