package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"agora/api/internal/permission"
	"agora/api/internal/store"
)

type EndorseInput struct {
	UserGroupID *int64 `json:"userGroupId"`
}

type ReportInput struct {
	Reason  string `json:"reason"`
	Details string `json:"details"`
}

var reportReasons = map[string]struct{}{
	"spam":            {},
	"offensive":       {},
	"does_not_belong": {},
}

// Vote casts the caller's vote. While the question sits under the
// component's vote threshold the vote is stored as temporary; the vote
// that crosses the threshold confirms the backlog.
func (s *Service) Vote(ctx context.Context, identity Identity, questionID int64) (map[string]any, error) {
	q, component, target, err := s.loadEngagementTarget(ctx, questionID)
	if err != nil {
		return nil, err
	}

	actorVotes, err := s.store.CountAuthorVotesInComponent(ctx, q.ComponentID, identity.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.decide(permission.Request{
		Actor:                 identity.actor(),
		Scope:                 permission.ScopePublic,
		Action:                "vote",
		Subject:               permission.SubjectQuestion,
		Target:                target,
		Settings:              component.Settings,
		ActorVotesInComponent: actorVotes,
	}); err != nil {
		return nil, err
	}
	if identity.Anonymous() {
		return nil, errForbidden()
	}

	threshold := component.Settings.VoteThreshold
	total, err := s.store.TotalVotes(ctx, questionID)
	if err != nil {
		return nil, err
	}
	temporary := threshold > 0 && total+1 < threshold

	vote, err := s.store.InsertVote(ctx, questionID, identity.UserID, temporary)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateVote):
			return nil, domainError(409, "ALREADY_VOTED", "You already voted on this question", nil)
		case errors.Is(err, store.ErrVoteOnRejected):
			return nil, errValidation("rejected questions cannot receive votes", nil)
		case errors.Is(err, store.ErrOrganizationMismatch):
			return nil, errValidation("the question belongs to another organization", nil)
		default:
			return nil, err
		}
	}

	if threshold > 0 && total+1 >= threshold {
		if err := s.store.ConfirmTemporaryVotes(ctx, questionID); err != nil {
			log.Printf("app: confirm temporary votes for %d: %v", questionID, err)
		}
	}

	q, err = s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	s.indexQuestion(q)
	return map[string]any{
		"questionId": questionID,
		"voteCount":  q.VoteCount,
		"temporary":  vote.Temporary,
	}, nil
}

// Unvote removes the caller's vote.
func (s *Service) Unvote(ctx context.Context, identity Identity, questionID int64) (map[string]any, error) {
	q, component, target, err := s.loadEngagementTarget(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if err := s.decide(permission.Request{
		Actor:    identity.actor(),
		Scope:    permission.ScopePublic,
		Action:   "unvote",
		Subject:  permission.SubjectQuestion,
		Target:   target,
		Settings: component.Settings,
	}); err != nil {
		return nil, err
	}
	if identity.Anonymous() {
		return nil, errForbidden()
	}
	if err := s.store.DeleteVote(ctx, questionID, identity.UserID); err != nil {
		return nil, err
	}
	q, err = s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	s.indexQuestion(q)
	return map[string]any{"questionId": questionID, "voteCount": q.VoteCount}, nil
}

// Endorse records a public endorsement, optionally on behalf of a group.
// Blocked endorsements deny new ones while Unendorse keeps working.
func (s *Service) Endorse(ctx context.Context, identity Identity, questionID int64, input EndorseInput) (map[string]any, error) {
	q, component, target, err := s.loadEngagementTarget(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if err := s.decide(permission.Request{
		Actor:    identity.actor(),
		Scope:    permission.ScopePublic,
		Action:   "endorse",
		Subject:  permission.SubjectQuestion,
		Target:   target,
		Settings: component.Settings,
	}); err != nil {
		return nil, err
	}
	if identity.Anonymous() {
		return nil, errForbidden()
	}

	if _, err := s.store.InsertEndorsement(ctx, questionID, identity.UserID, input.UserGroupID); err != nil {
		if errors.Is(err, store.ErrDuplicateEndorsement) {
			return nil, domainError(409, "ALREADY_ENDORSED", "You already endorsed this question", nil)
		}
		return nil, err
	}

	q, err = s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	s.indexQuestion(q)
	return map[string]any{"questionId": questionID, "endorsementCount": q.EndorsementCount}, nil
}

// Unendorse removes the caller's endorsement.
func (s *Service) Unendorse(ctx context.Context, identity Identity, questionID int64, input EndorseInput) (map[string]any, error) {
	q, component, target, err := s.loadEngagementTarget(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if err := s.decide(permission.Request{
		Actor:    identity.actor(),
		Scope:    permission.ScopePublic,
		Action:   "unendorse",
		Subject:  permission.SubjectQuestion,
		Target:   target,
		Settings: component.Settings,
	}); err != nil {
		return nil, err
	}
	if identity.Anonymous() {
		return nil, errForbidden()
	}
	if err := s.store.DeleteEndorsement(ctx, questionID, identity.UserID, input.UserGroupID); err != nil {
		return nil, err
	}
	q, err = s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	s.indexQuestion(q)
	return map[string]any{"questionId": questionID, "endorsementCount": q.EndorsementCount}, nil
}

// Report flags a question for moderation. Crossing the report threshold
// hides the question and drops it from the index.
func (s *Service) Report(ctx context.Context, identity Identity, questionID int64, input ReportInput) (map[string]any, error) {
	q, component, target, err := s.loadEngagementTarget(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if err := s.decide(permission.Request{
		Actor:    identity.actor(),
		Scope:    permission.ScopePublic,
		Action:   "report",
		Subject:  permission.SubjectQuestion,
		Target:   target,
		Settings: component.Settings,
	}); err != nil {
		return nil, err
	}
	if identity.Anonymous() {
		return nil, errForbidden()
	}
	if _, ok := reportReasons[input.Reason]; !ok {
		return nil, errValidation(fmt.Sprintf("unknown report reason %q", input.Reason), nil)
	}

	if err := s.store.InsertReport(ctx, store.Report{
		QuestionID: questionID,
		ReporterID: identity.UserID,
		Reason:     input.Reason,
		Details:    input.Details,
	}); err != nil {
		return nil, err
	}

	count, err := s.store.CountReports(ctx, questionID)
	if err != nil {
		return nil, err
	}
	hidden := false
	if s.cfg.ReportThreshold > 0 && count >= s.cfg.ReportThreshold {
		if err := s.store.HideQuestion(ctx, questionID); err != nil {
			return nil, err
		}
		hidden = true
		if s.search != nil {
			s.search.DeleteQuestion(questionID)
		}
		log.Printf("app: question %d hidden after %d reports", q.ID, count)
	}

	return map[string]any{"questionId": questionID, "reports": count, "hidden": hidden}, nil
}

type NoteInput struct {
	Body string `json:"body"`
}

// AddNote attaches a private moderation note to a question. Notes never
// appear in public payloads.
func (s *Service) AddNote(ctx context.Context, identity Identity, questionID int64, input NoteInput) (map[string]any, error) {
	q, err := s.loadNoteTarget(ctx, identity, questionID)
	if err != nil {
		return nil, err
	}

	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, errValidation("a note needs a body", nil)
	}
	if err := s.store.InsertNote(ctx, store.QuestionNote{
		QuestionID: q.ID,
		AuthorID:   identity.UserID,
		Body:       body,
	}); err != nil {
		return nil, err
	}
	return s.noteList(ctx, questionID)
}

// ListNotes returns the private notes on a question, newest first.
func (s *Service) ListNotes(ctx context.Context, identity Identity, questionID int64) (map[string]any, error) {
	if _, err := s.loadNoteTarget(ctx, identity, questionID); err != nil {
		return nil, err
	}
	return s.noteList(ctx, questionID)
}

func (s *Service) loadNoteTarget(ctx context.Context, identity Identity, questionID int64) (store.Question, error) {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return store.Question{}, err
	}
	component, err := s.store.GetComponent(ctx, q.ComponentID)
	if err != nil {
		return store.Question{}, err
	}
	if err := s.decide(permission.Request{
		Actor:    identity.actor(),
		Scope:    permission.ScopeAdmin,
		Action:   "note",
		Subject:  permission.SubjectQuestion,
		Settings: component.Settings,
	}); err != nil {
		return store.Question{}, err
	}
	return q, nil
}

func (s *Service) noteList(ctx context.Context, questionID int64) (map[string]any, error) {
	notes, err := s.store.ListNotes(ctx, questionID)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(notes))
	for _, n := range notes {
		payload = append(payload, map[string]any{
			"id":        n.ID,
			"authorId":  n.AuthorID,
			"body":      n.Body,
			"createdAt": n.CreatedAt,
		})
	}
	return map[string]any{"questionId": questionID, "notes": payload}, nil
}

func (s *Service) loadEngagementTarget(ctx context.Context, questionID int64) (store.Question, store.Component, *permission.Target, error) {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return store.Question{}, store.Component{}, nil, err
	}
	if q.Hidden() || !q.Published() {
		return store.Question{}, store.Component{}, nil, errNotFound("Question not found")
	}
	component, err := s.store.GetComponent(ctx, q.ComponentID)
	if err != nil {
		return store.Question{}, store.Component{}, nil, err
	}
	target, err := s.target(ctx, q)
	if err != nil {
		return store.Question{}, store.Component{}, nil, err
	}
	return q, component, target, nil
}
