// Package permission decides whether an actor may perform an action on a
// question or collaborative draft. Verdicts are three-valued: an engine
// that has no opinion returns NotApplicable so the caller can continue to
// the next engine in its chain instead of treating silence as denial.
package permission

import (
	"time"

	"agora/api/internal/lifecycle"
)

// Decision is the outcome of a permission check.
type Decision int

const (
	NotApplicable Decision = iota
	Allow
	Deny
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "not_applicable"
	}
}

type Scope string

const (
	ScopePublic Scope = "public"
	ScopeAdmin  Scope = "admin"
)

type Subject string

const (
	SubjectQuestion Subject = "question"
	SubjectDraft    Subject = "collaborative_draft"
)

// Actor identifies the user requesting an action. A zero ID means an
// unauthenticated visitor.
type Actor struct {
	ID       int64
	Role     string
	GroupIDs []int64
}

func (a Actor) Anonymous() bool { return a.ID == 0 }

func (a Actor) Admin() bool { return a.Role == "admin" }

// Target is a snapshot of the question a request is aimed at. Counters are
// read once by the caller so a single decision sees consistent values.
type Target struct {
	ID               int64
	AuthorIDs        []int64
	Official         bool
	State            lifecycle.State
	CreatedAt        time.Time
	VoteCount        int
	EndorsementCount int
}

// AuthoredBy reports whether the actor is among the target's coauthors.
func (t *Target) AuthoredBy(actorID int64) bool {
	if t == nil || actorID == 0 {
		return false
	}
	for _, id := range t.AuthorIDs {
		if id == actorID {
			return true
		}
	}
	return false
}

// EditableBy reports whether the actor may edit the target: official
// questions stay editable while nobody has engaged with them; citizen
// questions are editable by their authors inside the edit window.
func (t *Target) EditableBy(actorID int64, editWindow time.Duration, now time.Time) bool {
	if t == nil {
		return false
	}
	if t.Official {
		return t.VoteCount == 0 && t.EndorsementCount == 0
	}
	if !t.AuthoredBy(actorID) {
		return false
	}
	if editWindow <= 0 {
		return true
	}
	return now.Before(t.CreatedAt.Add(editWindow))
}

// DraftTarget is a snapshot of the collaborative draft a request is aimed
// at.
type DraftTarget struct {
	ID              int64
	Open            bool
	ActorIsEditor   bool
	AccessRequested bool
}

// Request carries everything a decision needs. It is assembled by the
// caller from one consistent read of the store.
type Request struct {
	Actor   Actor
	Scope   Scope
	Action  string
	Subject Subject

	Target *Target
	Draft  *DraftTarget

	Settings Settings

	// ActorVotesInComponent is the actor's vote count across every
	// question of the current component, used for the vote limit.
	ActorVotesInComponent int
}

// Engine is one rules engine in a chain.
type Engine interface {
	Decide(req Request) Decision
}

// Chain evaluates engines in order and stops at the first conclusive
// verdict. An exhausted chain is NotApplicable; callers wanting a default
// deny append a closing engine of their own.
type Chain []Engine

func (c Chain) Decide(req Request) Decision {
	for _, engine := range c {
		if verdict := engine.Decide(req); verdict != NotApplicable {
			return verdict
		}
	}
	return NotApplicable
}

// Authorizer answers capability checks that live outside this module, such
// as identity-verification handlers on the host platform.
type Authorizer interface {
	Authorized(actor Actor, capability string, target *Target) bool
}

// AllowAll authorizes every capability. Hosts without verification
// workflows compose the chain with it.
type AllowAll struct{}

func (AllowAll) Authorized(Actor, string, *Target) bool { return true }

// QuestionEngine implements the public question and collaborative-draft
// rules. Admin-scope requests delegate wholesale to Admin and its verdict
// passes through unchanged.
type QuestionEngine struct {
	Admin      Engine
	Authorizer Authorizer
	// EditWindow bounds citizen edits after creation. Zero means no bound.
	EditWindow time.Duration
	Now        func() time.Time
}

func (e *QuestionEngine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *QuestionEngine) authorized(actor Actor, capability string, target *Target) bool {
	if e.Authorizer == nil {
		return false
	}
	return e.Authorizer.Authorized(actor, capability, target)
}

func (e *QuestionEngine) Decide(req Request) Decision {
	if req.Scope == ScopeAdmin {
		if e.Admin == nil {
			return NotApplicable
		}
		return e.Admin.Decide(req)
	}
	switch req.Subject {
	case SubjectQuestion:
		return e.decideQuestion(req)
	case SubjectDraft:
		return e.decideDraft(req)
	default:
		return NotApplicable
	}
}

func (e *QuestionEngine) decideQuestion(req Request) Decision {
	switch req.Action {
	case "create":
		return verdict(e.authorized(req.Actor, "create", nil) && req.Settings.CreationEnabled)
	case "edit":
		return verdict(req.Target != nil && req.Target.EditableBy(req.Actor.ID, e.EditWindow, e.now()))
	case "withdraw":
		return verdict(req.Target.AuthoredBy(req.Actor.ID))
	case "endorse":
		return verdict(req.Target != nil &&
			e.authorized(req.Actor, "endorse", req.Target) &&
			req.Settings.EndorsementsEnabled &&
			!req.Settings.EndorsementsBlocked)
	case "unendorse":
		return verdict(req.Target != nil &&
			e.authorized(req.Actor, "endorse", req.Target) &&
			req.Settings.EndorsementsEnabled)
	case "vote":
		return verdict(req.Target != nil &&
			e.authorized(req.Actor, "vote", req.Target) &&
			req.Settings.VotesEnabled &&
			!req.Settings.VotesBlocked &&
			remainingVotes(req) > 0)
	case "unvote":
		return verdict(req.Target != nil &&
			e.authorized(req.Actor, "vote", req.Target) &&
			req.Settings.VotesEnabled &&
			!req.Settings.VotesBlocked)
	case "report":
		return Allow
	default:
		return NotApplicable
	}
}

func (e *QuestionEngine) decideDraft(req Request) Decision {
	if !req.Settings.CollaborativeDraftsEnabled {
		if req.Action == "create" || req.Action == "edit" || req.Action == "publish" || req.Action == "request_access" {
			return Deny
		}
		return NotApplicable
	}
	switch req.Action {
	case "create":
		return verdict(e.authorized(req.Actor, "create", nil))
	case "edit", "publish":
		return verdict(req.Draft != nil && req.Draft.Open && req.Draft.ActorIsEditor)
	case "request_access":
		if req.Draft == nil || !req.Draft.Open {
			return Deny
		}
		if req.Draft.ActorIsEditor || req.Draft.AccessRequested {
			return Deny
		}
		return Allow
	default:
		return NotApplicable
	}
}

// remainingVotes returns how many more votes the actor may cast in the
// component. Without a positive configured limit voting is unlimited and
// any positive number permits the action.
func remainingVotes(req Request) int {
	if req.Settings.VoteLimit <= 0 {
		return 1
	}
	return req.Settings.VoteLimit - req.ActorVotesInComponent
}

// AdminEngine covers the component-admin actions on questions. Unknown
// actions fall through so other admin engines on the host can claim them.
type AdminEngine struct{}

var adminActions = map[string]struct{}{
	"answer":          {},
	"create":          {},
	"import":          {},
	"split":           {},
	"merge":           {},
	"copy":            {},
	"update_category": {},
	"update_scope":    {},
	"update_settings": {},
	"export":          {},
	"note":            {},
}

func (AdminEngine) Decide(req Request) Decision {
	if req.Subject != SubjectQuestion {
		return NotApplicable
	}
	if _, ok := adminActions[req.Action]; !ok {
		return NotApplicable
	}
	return verdict(req.Actor.Admin())
}

func verdict(allowed bool) Decision {
	if allowed {
		return Allow
	}
	return Deny
}
