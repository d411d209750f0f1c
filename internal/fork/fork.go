// Package fork derives new questions from existing ones for the admin
// split, merge and copy operations. It computes the attribute copy and the
// engagement validation; persistence and provenance links stay with the
// caller.
package fork

import (
	"errors"

	"agora/api/internal/lifecycle"
	"agora/api/internal/store"
)

// ErrEngagedQuestions signals a same-component fork over citizen-authored
// or already-engaged questions, which would silently strip authorship and
// provenance.
var ErrEngagedQuestions = errors.New("cannot fork citizen-authored or engaged questions within the same component")

// Overrides are applied on top of the copied attributes. Zero values keep
// the original's field.
type Overrides struct {
	Title       string
	Body        string
	ComponentID int64
}

// Copy builds the forked question: every attribute carries over except
// identity, timestamps, state, answer, component, reference and counters,
// which reset to their defaults. The target component defaults to the
// original's unless overridden.
func Copy(original store.Question, overrides Overrides) store.Question {
	forked := store.Question{
		ComponentID: original.ComponentID,
		Title:       original.Title,
		Body:        original.Body,
		State:       lifecycle.StatePending,
		CategoryID:  original.CategoryID,
		ScopeID:     original.ScopeID,
		Position:    original.Position,
		Level:       original.Level,
	}
	if overrides.ComponentID != 0 {
		forked.ComponentID = overrides.ComponentID
	}
	if overrides.Title != "" {
		forked.Title = overrides.Title
	}
	if overrides.Body != "" {
		forked.Body = overrides.Body
	}
	return forked
}

// Candidate is one selected question with the facts the same-component
// validation needs.
type Candidate struct {
	Question store.Question
	Official bool
}

// ValidateSameComponent rejects a fork whose source and target component
// coincide when any selected question is non-official or has votes or
// endorsements.
func ValidateSameComponent(candidates []Candidate, targetComponentID int64) error {
	for _, candidate := range candidates {
		if candidate.Question.ComponentID != targetComponentID {
			continue
		}
		if !candidate.Official ||
			candidate.Question.VoteCount > 0 ||
			candidate.Question.EndorsementCount > 0 {
			return ErrEngagedQuestions
		}
	}
	return nil
}
