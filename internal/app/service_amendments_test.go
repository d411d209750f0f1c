package app

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"agora/api/internal/notify"
	"agora/api/internal/permission"
	"agora/api/internal/store"
)

func amendmentSettings() permission.Settings {
	settings := permission.DefaultSettings()
	settings.AmendmentsEnabled = true
	return settings
}

func TestCreateAmendment(t *testing.T) {
	original := publishedQuestion(81)
	var emendation store.Question
	fs := &fakeStore{
		getComponentFn: openComponent(amendmentSettings()),
		getQuestionFn: func(_ context.Context, id int64) (store.Question, error) {
			if id == 81 {
				return original, nil
			}
			return store.Question{}, sql.ErrNoRows
		},
		listCoauthorsFn: citizenAuthor(5),
		insertQuestionFn: func(_ context.Context, q store.Question, _ store.Coauthorship) (store.Question, error) {
			emendation = q
			q.ID = 82
			return q, nil
		},
		insertAmendmentFn: func(_ context.Context, a store.Amendment) (store.Amendment, error) {
			a.ID = 9
			return a, nil
		},
	}
	svc, deps := newTestService(fs)

	payload, err := svc.CreateAmendment(context.Background(), citizen, 81, CreateAmendmentInput{
		Title: "Bike lanes on Main Street",
		Body:  "When will the lanes open, and where exactly?",
	})
	if err != nil {
		t.Fatalf("CreateAmendment: %v", err)
	}
	if emendation.PublishedAt != nil {
		t.Fatal("the emendation must stay unpublished")
	}
	if payload["state"] != "evaluating" {
		t.Fatalf("expected evaluating amendment, got %v", payload["state"])
	}
	if len(deps.revisions.branches) != 1 || deps.revisions.branches[0] != "amendment-9" {
		t.Fatalf("expected branch amendment-9, got %v", deps.revisions.branches)
	}
	if len(deps.events.events) != 1 || deps.events.events[0].Kind != notify.KindAmendmentCreated {
		t.Fatalf("expected amendment.created event, got %+v", deps.events.events)
	}
}

func TestCreateAmendmentDisabled(t *testing.T) {
	original := publishedQuestion(83)
	fs := &fakeStore{
		getComponentFn: openComponent(permission.DefaultSettings()),
		getQuestionFn:  func(context.Context, int64) (store.Question, error) { return original, nil },
	}
	svc, _ := newTestService(fs)

	_, err := svc.CreateAmendment(context.Background(), citizen, 83, CreateAmendmentInput{Title: "T", Body: "B"})
	if code := domainCode(t, err); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestCreateAmendmentNoChange(t *testing.T) {
	original := publishedQuestion(84)
	fs := &fakeStore{
		getComponentFn: openComponent(amendmentSettings()),
		getQuestionFn:  func(context.Context, int64) (store.Question, error) { return original, nil },
	}
	svc, _ := newTestService(fs)

	_, err := svc.CreateAmendment(context.Background(), citizen, 84, CreateAmendmentInput{
		Title: original.Title,
		Body:  original.Body,
	})
	if code := domainCode(t, err); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}

func openAmendmentStore(original, emendation store.Question, amenderID int64) *fakeStore {
	return &fakeStore{
		getComponentFn: openComponent(amendmentSettings()),
		getQuestionFn: func(_ context.Context, id int64) (store.Question, error) {
			switch id {
			case original.ID:
				return original, nil
			case emendation.ID:
				return emendation, nil
			}
			return store.Question{}, sql.ErrNoRows
		},
		getAmendmentFn: func(context.Context, int64) (store.Amendment, error) {
			return store.Amendment{
				ID:           9,
				QuestionID:   original.ID,
				EmendationID: emendation.ID,
				AmenderID:    amenderID,
				State:        "evaluating",
			}, nil
		},
	}
}

func TestAcceptAmendmentAppliesText(t *testing.T) {
	original := publishedQuestion(91)
	emendation := publishedQuestion(92)
	emendation.Title = "Bike lanes on Main and Oak"
	emendation.Body = "Both streets need lanes."

	fs := openAmendmentStore(original, emendation, 5)
	fs.listCoauthorsFn = citizenAuthor(citizen.UserID)
	var appliedTitle, appliedBody string
	fs.updateContentFn = func(_ context.Context, id int64, title, body string) error {
		if id != original.ID {
			t.Fatalf("expected content update on the original, got %d", id)
		}
		appliedTitle, appliedBody = title, body
		return nil
	}
	var decidedState string
	fs.updateAmendmentStateFn = func(_ context.Context, _ int64, state string, _ time.Time) error {
		decidedState = state
		return nil
	}
	svc, deps := newTestService(fs)

	if _, err := svc.AcceptAmendment(context.Background(), citizen, 9); err != nil {
		t.Fatalf("AcceptAmendment: %v", err)
	}
	if appliedTitle != emendation.Title || appliedBody != emendation.Body {
		t.Fatalf("emendation text not applied: %q / %q", appliedTitle, appliedBody)
	}
	if decidedState != "accepted" {
		t.Fatalf("expected accepted, got %q", decidedState)
	}
	if len(deps.revisions.merges) != 1 || deps.revisions.merges[0] != "amendment-9" {
		t.Fatalf("expected merge of amendment-9, got %v", deps.revisions.merges)
	}
	if len(deps.events.events) != 1 || deps.events.events[0].Kind != notify.KindAmendmentAccepted {
		t.Fatalf("expected amendment.accepted event, got %+v", deps.events.events)
	}
}

func TestAmendmentDecisionRequiresAdminOrAuthor(t *testing.T) {
	original := publishedQuestion(93)
	emendation := publishedQuestion(94)
	fs := openAmendmentStore(original, emendation, 5)
	fs.listCoauthorsFn = citizenAuthor(999)
	svc, _ := newTestService(fs)

	_, err := svc.RejectAmendment(context.Background(), citizen, 9)
	if code := domainCode(t, err); code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %s", code)
	}

	if _, err := svc.RejectAmendment(context.Background(), admin, 9); err != nil {
		t.Fatalf("RejectAmendment as admin: %v", err)
	}
}

func TestRejectAmendmentLeavesOriginal(t *testing.T) {
	original := publishedQuestion(95)
	emendation := publishedQuestion(96)
	fs := openAmendmentStore(original, emendation, 5)
	fs.listCoauthorsFn = citizenAuthor(citizen.UserID)
	fs.updateContentFn = func(context.Context, int64, string, string) error {
		t.Fatal("rejecting must not touch the original text")
		return nil
	}
	svc, deps := newTestService(fs)

	if _, err := svc.RejectAmendment(context.Background(), citizen, 9); err != nil {
		t.Fatalf("RejectAmendment: %v", err)
	}
	if len(deps.revisions.merges) != 0 {
		t.Fatalf("rejecting must not merge, got %v", deps.revisions.merges)
	}
}

func TestWithdrawAmendmentOnlyByAmender(t *testing.T) {
	original := publishedQuestion(97)
	emendation := publishedQuestion(98)
	fs := openAmendmentStore(original, emendation, citizen.UserID)
	svc, _ := newTestService(fs)

	other := Identity{UserID: 500, Role: "participant"}
	if _, err := svc.WithdrawAmendment(context.Background(), other, 9); domainCode(t, err) != "FORBIDDEN" {
		t.Fatal("expected only the amender to withdraw")
	}

	payload, err := svc.WithdrawAmendment(context.Background(), citizen, 9)
	if err != nil {
		t.Fatalf("WithdrawAmendment: %v", err)
	}
	if payload["state"] != "withdrawn" {
		t.Fatalf("expected withdrawn, got %v", payload["state"])
	}
}

func TestDecidedAmendmentIsLocked(t *testing.T) {
	original := publishedQuestion(99)
	fs := &fakeStore{
		getComponentFn: openComponent(amendmentSettings()),
		getQuestionFn:  func(context.Context, int64) (store.Question, error) { return original, nil },
		getAmendmentFn: func(context.Context, int64) (store.Amendment, error) {
			return store.Amendment{ID: 9, QuestionID: 99, State: "accepted"}, nil
		},
	}
	svc, _ := newTestService(fs)

	_, err := svc.AcceptAmendment(context.Background(), admin, 9)
	if code := domainCode(t, err); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}
