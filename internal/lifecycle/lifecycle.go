// Package lifecycle defines the states a question passes through and the
// visibility predicates used when listing and searching questions.
package lifecycle

// State is the answer-workflow state of a question. The zero value means
// published-but-unanswered, which is the default visible state.
type State string

const (
	StateDraft      State = "draft"
	StatePending    State = ""
	StateEvaluating State = "evaluating"
	StateAccepted   State = "accepted"
	StateRejected   State = "rejected"
	StateWithdrawn  State = "withdrawn"
)

// AnswerStates are the states an admin answer may set directly. There is no
// enforced ordering between evaluating and a final state: pending may jump
// straight to accepted.
var AnswerStates = map[State]struct{}{
	StateEvaluating: {},
	StateAccepted:   {},
	StateRejected:   {},
}

func Valid(s State) bool {
	switch s {
	case StateDraft, StatePending, StateEvaluating, StateAccepted, StateRejected, StateWithdrawn:
		return true
	default:
		return false
	}
}

// Final reports whether s has no outgoing transitions.
func Final(s State) bool {
	return s == StateAccepted || s == StateRejected || s == StateWithdrawn
}

// CanTransition reports whether the admin answer operation may move a
// question from one state to another.
func CanTransition(from, to State) bool {
	if _, ok := AnswerStates[to]; !ok {
		return false
	}
	if Final(from) || from == StateDraft {
		return false
	}
	return true
}

// CanWithdraw reports whether the authoring user may withdraw a question in
// the given state. Author identity is checked by the caller.
func CanWithdraw(from State) bool {
	return from == StatePending || from == StateEvaluating
}

// Answered reports whether the question carries an admin verdict.
func Answered(s State) bool {
	_, ok := AnswerStates[s]
	return ok
}

// Filter selects questions by state for listing and search. The zero value
// is the default listing filter: everything except withdrawn.
type Filter struct {
	// States restricts the result to an explicit state set. Empty means no
	// explicit restriction.
	States []State
	// IncludeWithdrawn keeps withdrawn questions in the result. It only
	// applies when States is empty.
	IncludeWithdrawn bool
	// ExceptRejected drops rejected questions. It only applies when States
	// is empty.
	ExceptRejected bool
	// IncludeDrafts keeps unpublished drafts in the result.
	IncludeDrafts bool
}

// Match reports whether a question in state s, with the given published
// flag, passes the filter. Moderation hiding is a separate row-level flag
// handled by the store queries.
func (f Filter) Match(s State, published bool) bool {
	if !published && !f.IncludeDrafts {
		return false
	}
	if s == StateDraft && !f.IncludeDrafts {
		return false
	}
	if len(f.States) > 0 {
		for _, want := range f.States {
			if s == want {
				return true
			}
		}
		return false
	}
	if s == StateWithdrawn && !f.IncludeWithdrawn {
		return false
	}
	if s == StateRejected && f.ExceptRejected {
		return false
	}
	return true
}
