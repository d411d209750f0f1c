package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"agora/api/internal/fork"
	"agora/api/internal/notify"
	"agora/api/internal/revision"
	"agora/api/internal/store"
)

type CreateAmendmentInput struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// CreateAmendment opens an amendment on a published question: the proposed
// text lives in an unpublished emendation question and on a dedicated
// branch of the original's revision repo.
func (s *Service) CreateAmendment(ctx context.Context, identity Identity, questionID int64, input CreateAmendmentInput) (map[string]any, error) {
	original, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if original.Hidden() || !original.Published() {
		return nil, errNotFound("Question not found")
	}
	component, err := s.store.GetComponent(ctx, original.ComponentID)
	if err != nil {
		return nil, err
	}
	if !component.Settings.AmendmentsEnabled {
		return nil, errValidation("amendments are not enabled on this component", nil)
	}
	if identity.Anonymous() {
		return nil, errForbidden()
	}
	if err := s.validateContent(component.Settings, input.Title, input.Body); err != nil {
		return nil, err
	}
	if input.Title == original.Title && input.Body == original.Body {
		return nil, errValidation("the amendment changes nothing", nil)
	}

	emendation := fork.Copy(original, fork.Overrides{Title: input.Title, Body: input.Body})
	amenderID := identity.UserID
	created, err := s.store.InsertQuestion(ctx, emendation, store.Coauthorship{AuthorID: &amenderID})
	if err != nil {
		return nil, fmt.Errorf("insert emendation: %w", err)
	}

	amendment, err := s.store.InsertAmendment(ctx, store.Amendment{
		QuestionID:   questionID,
		EmendationID: created.ID,
		AmenderID:    identity.UserID,
		State:        "evaluating",
	})
	if err != nil {
		return nil, fmt.Errorf("insert amendment: %w", err)
	}

	branch := revision.AmendmentBranch(amendment.ID)
	if err := s.revisions.EnsureBranch(questionID, branch, "main"); err != nil {
		log.Printf("app: branch %s on %d: %v", branch, questionID, err)
	} else if _, err := s.revisions.CommitContent(questionID, branch, revision.Content{Title: input.Title, Body: input.Body}, identity.Name, fmt.Sprintf("Propose amendment %d", amendment.ID)); err != nil {
		log.Printf("app: commit amendment %d: %v", amendment.ID, err)
	}

	s.publishEvent(ctx, notify.Event{
		Kind:       notify.KindAmendmentCreated,
		QuestionID: questionID,
		Recipients: s.authorIDs(ctx, questionID),
		Extra:      map[string]any{"amendmentId": amendment.ID},
	})

	return s.amendmentPayload(amendment), nil
}

// AcceptAmendment applies the emendation text to the original question.
// Admins may always decide; the original's authors may too.
func (s *Service) AcceptAmendment(ctx context.Context, identity Identity, amendmentID int64) (map[string]any, error) {
	amendment, original, err := s.loadOpenAmendment(ctx, amendmentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAmendmentDecider(ctx, identity, original); err != nil {
		return nil, err
	}

	emendation, err := s.store.GetQuestion(ctx, amendment.EmendationID)
	if err != nil {
		return nil, err
	}

	branch := revision.AmendmentBranch(amendment.ID)
	if _, err := s.revisions.MergeIntoMain(original.ID, branch, identity.Name, fmt.Sprintf("Accept amendment %d", amendment.ID)); err != nil {
		log.Printf("app: merge amendment %d: %v", amendment.ID, err)
	}
	if err := s.store.UpdateQuestionContent(ctx, original.ID, emendation.Title, emendation.Body); err != nil {
		return nil, err
	}
	if err := s.store.UpdateAmendmentState(ctx, amendment.ID, "accepted", time.Now()); err != nil {
		return nil, err
	}
	if err := s.store.PublishQuestion(ctx, emendation.ID); err != nil {
		log.Printf("app: publish emendation %d: %v", emendation.ID, err)
	}

	s.publishEvent(ctx, notify.Event{
		Kind:       notify.KindAmendmentAccepted,
		QuestionID: original.ID,
		Recipients: []int64{amendment.AmenderID},
		Extra:      map[string]any{"amendmentId": amendment.ID},
	})

	updated, err := s.store.GetQuestion(ctx, original.ID)
	if err != nil {
		return nil, err
	}
	s.indexQuestion(updated)

	amendment.State = "accepted"
	return s.amendmentPayload(amendment), nil
}

// RejectAmendment closes the amendment and leaves the original untouched.
func (s *Service) RejectAmendment(ctx context.Context, identity Identity, amendmentID int64) (map[string]any, error) {
	amendment, original, err := s.loadOpenAmendment(ctx, amendmentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAmendmentDecider(ctx, identity, original); err != nil {
		return nil, err
	}
	if err := s.store.UpdateAmendmentState(ctx, amendment.ID, "rejected", time.Now()); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, notify.Event{
		Kind:       notify.KindAmendmentRejected,
		QuestionID: original.ID,
		Recipients: []int64{amendment.AmenderID},
		Extra:      map[string]any{"amendmentId": amendment.ID},
	})
	amendment.State = "rejected"
	return s.amendmentPayload(amendment), nil
}

// WithdrawAmendment lets the amender retract an open amendment.
func (s *Service) WithdrawAmendment(ctx context.Context, identity Identity, amendmentID int64) (map[string]any, error) {
	amendment, _, err := s.loadOpenAmendment(ctx, amendmentID)
	if err != nil {
		return nil, err
	}
	if identity.UserID != amendment.AmenderID {
		return nil, errForbidden()
	}
	if err := s.store.UpdateAmendmentState(ctx, amendment.ID, "withdrawn", time.Now()); err != nil {
		return nil, err
	}
	amendment.State = "withdrawn"
	return s.amendmentPayload(amendment), nil
}

// ListAmendments lists a question's amendments with their proposed text.
func (s *Service) ListAmendments(ctx context.Context, questionID int64) (map[string]any, error) {
	if _, err := s.store.GetQuestion(ctx, questionID); err != nil {
		return nil, err
	}
	amendments, err := s.store.ListAmendments(ctx, questionID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(amendments))
	for _, a := range amendments {
		payload := s.amendmentPayload(a)
		if emendation, err := s.store.GetQuestion(ctx, a.EmendationID); err == nil {
			payload["title"] = emendation.Title
			payload["body"] = emendation.Body
		}
		items = append(items, payload)
	}
	return map[string]any{"amendments": items}, nil
}

func (s *Service) loadOpenAmendment(ctx context.Context, amendmentID int64) (store.Amendment, store.Question, error) {
	amendment, err := s.store.GetAmendment(ctx, amendmentID)
	if err != nil {
		return store.Amendment{}, store.Question{}, err
	}
	if amendment.State != "evaluating" {
		return store.Amendment{}, store.Question{}, errValidation(
			fmt.Sprintf("amendment is already %s", amendment.State), nil)
	}
	original, err := s.store.GetQuestion(ctx, amendment.QuestionID)
	if err != nil {
		return store.Amendment{}, store.Question{}, err
	}
	return amendment, original, nil
}

func (s *Service) requireAmendmentDecider(ctx context.Context, identity Identity, original store.Question) error {
	if identity.actor().Admin() {
		return nil
	}
	target, err := s.target(ctx, original)
	if err != nil {
		return err
	}
	if !target.AuthoredBy(identity.UserID) {
		return errForbidden()
	}
	return nil
}

func (s *Service) amendmentPayload(a store.Amendment) map[string]any {
	payload := map[string]any{
		"id":           a.ID,
		"questionId":   a.QuestionID,
		"emendationId": a.EmendationID,
		"amenderId":    a.AmenderID,
		"state":        a.State,
		"createdAt":    a.CreatedAt,
	}
	if a.DecidedAt != nil {
		payload["decidedAt"] = a.DecidedAt
	}
	return payload
}
