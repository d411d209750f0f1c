package app

import (
	"context"
	"testing"

	"agora/api/internal/permission"
	"agora/api/internal/store"
)

func votingSettings(threshold, limit int) permission.Settings {
	settings := permission.DefaultSettings()
	settings.VoteThreshold = threshold
	settings.VoteLimit = limit
	return settings
}

func TestVoteUnderThresholdIsTemporary(t *testing.T) {
	q := publishedQuestion(51)
	var gotTemporary bool
	fs := &fakeStore{
		getComponentFn: openComponent(votingSettings(5, 0)),
		getQuestionFn:  func(context.Context, int64) (store.Question, error) { return q, nil },
		totalVotesFn:   func(context.Context, int64) (int, error) { return 2, nil },
		insertVoteFn: func(_ context.Context, questionID, authorID int64, temporary bool) (store.QuestionVote, error) {
			gotTemporary = temporary
			return store.QuestionVote{QuestionID: questionID, AuthorID: authorID, Temporary: temporary}, nil
		},
	}
	svc, _ := newTestService(fs)

	payload, err := svc.Vote(context.Background(), citizen, 51)
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if !gotTemporary {
		t.Fatal("expected a temporary vote below the threshold")
	}
	if payload["temporary"] != true {
		t.Fatalf("expected temporary in payload, got %v", payload["temporary"])
	}
}

func TestVoteCrossingThresholdConfirmsBacklog(t *testing.T) {
	q := publishedQuestion(52)
	confirmed := false
	fs := &fakeStore{
		getComponentFn: openComponent(votingSettings(3, 0)),
		getQuestionFn:  func(context.Context, int64) (store.Question, error) { return q, nil },
		totalVotesFn:   func(context.Context, int64) (int, error) { return 2, nil },
		insertVoteFn: func(_ context.Context, questionID, authorID int64, temporary bool) (store.QuestionVote, error) {
			if temporary {
				t.Fatal("the crossing vote must not be temporary")
			}
			return store.QuestionVote{QuestionID: questionID, AuthorID: authorID}, nil
		},
		confirmVotesFn: func(context.Context, int64) error {
			confirmed = true
			return nil
		},
	}
	svc, _ := newTestService(fs)

	if _, err := svc.Vote(context.Background(), citizen, 52); err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if !confirmed {
		t.Fatal("expected temporary votes to be confirmed")
	}
}

func TestVoteDuplicateConflict(t *testing.T) {
	q := publishedQuestion(53)
	fs := &fakeStore{
		getComponentFn: openComponent(votingSettings(0, 0)),
		getQuestionFn:  func(context.Context, int64) (store.Question, error) { return q, nil },
		insertVoteFn: func(context.Context, int64, int64, bool) (store.QuestionVote, error) {
			return store.QuestionVote{}, store.ErrDuplicateVote
		},
	}
	svc, _ := newTestService(fs)

	_, err := svc.Vote(context.Background(), citizen, 53)
	if code := domainCode(t, err); code != "ALREADY_VOTED" {
		t.Fatalf("expected ALREADY_VOTED, got %s", code)
	}
}

func TestVoteOnRejectedQuestion(t *testing.T) {
	q := publishedQuestion(54)
	fs := &fakeStore{
		getComponentFn: openComponent(votingSettings(0, 0)),
		getQuestionFn:  func(context.Context, int64) (store.Question, error) { return q, nil },
		insertVoteFn: func(context.Context, int64, int64, bool) (store.QuestionVote, error) {
			return store.QuestionVote{}, store.ErrVoteOnRejected
		},
	}
	svc, _ := newTestService(fs)

	_, err := svc.Vote(context.Background(), citizen, 54)
	if code := domainCode(t, err); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestVoteLimitReached(t *testing.T) {
	q := publishedQuestion(55)
	fs := &fakeStore{
		getComponentFn:     openComponent(votingSettings(0, 2)),
		getQuestionFn:      func(context.Context, int64) (store.Question, error) { return q, nil },
		countAuthorVotesFn: func(context.Context, int64, int64) (int, error) { return 2, nil },
	}
	svc, _ := newTestService(fs)

	_, err := svc.Vote(context.Background(), citizen, 55)
	if code := domainCode(t, err); code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %s", code)
	}
}

func TestVoteWhenVotingDisabled(t *testing.T) {
	settings := permission.DefaultSettings()
	settings.VotesEnabled = false
	q := publishedQuestion(56)
	fs := &fakeStore{
		getComponentFn: openComponent(settings),
		getQuestionFn:  func(context.Context, int64) (store.Question, error) { return q, nil },
	}
	svc, _ := newTestService(fs)

	_, err := svc.Vote(context.Background(), citizen, 56)
	if code := domainCode(t, err); code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %s", code)
	}
}

func TestUnvote(t *testing.T) {
	q := publishedQuestion(57)
	deleted := false
	fs := &fakeStore{
		getComponentFn: openComponent(votingSettings(0, 0)),
		getQuestionFn:  func(context.Context, int64) (store.Question, error) { return q, nil },
		deleteVoteFn: func(context.Context, int64, int64) error {
			deleted = true
			return nil
		},
	}
	svc, _ := newTestService(fs)

	if _, err := svc.Unvote(context.Background(), citizen, 57); err != nil {
		t.Fatalf("Unvote: %v", err)
	}
	if !deleted {
		t.Fatal("expected the vote to be deleted")
	}
}

func TestEndorseBlockedAsymmetry(t *testing.T) {
	settings := permission.DefaultSettings()
	settings.EndorsementsBlocked = true
	q := publishedQuestion(61)
	deleted := false
	fs := &fakeStore{
		getComponentFn: openComponent(settings),
		getQuestionFn:  func(context.Context, int64) (store.Question, error) { return q, nil },
		deleteEndorsementFn: func(context.Context, int64, int64, *int64) error {
			deleted = true
			return nil
		},
	}
	svc, _ := newTestService(fs)

	_, err := svc.Endorse(context.Background(), citizen, 61, EndorseInput{})
	if code := domainCode(t, err); code != "FORBIDDEN" {
		t.Fatalf("expected blocked endorsement, got %s", code)
	}

	// Blocking freezes new endorsements but existing ones stay removable.
	if _, err := svc.Unendorse(context.Background(), citizen, 61, EndorseInput{}); err != nil {
		t.Fatalf("Unendorse: %v", err)
	}
	if !deleted {
		t.Fatal("expected the endorsement to be deleted")
	}
}

func TestEndorseDuplicateConflict(t *testing.T) {
	q := publishedQuestion(62)
	fs := &fakeStore{
		getComponentFn: openComponent(permission.DefaultSettings()),
		getQuestionFn:  func(context.Context, int64) (store.Question, error) { return q, nil },
		insertEndorsementFn: func(context.Context, int64, int64, *int64) (store.QuestionEndorsement, error) {
			return store.QuestionEndorsement{}, store.ErrDuplicateEndorsement
		},
	}
	svc, _ := newTestService(fs)

	_, err := svc.Endorse(context.Background(), citizen, 62, EndorseInput{})
	if code := domainCode(t, err); code != "ALREADY_ENDORSED" {
		t.Fatalf("expected ALREADY_ENDORSED, got %s", code)
	}
}

func TestReportThresholdHidesQuestion(t *testing.T) {
	q := publishedQuestion(71)
	hidden := false
	fs := &fakeStore{
		getComponentFn: openComponent(permission.DefaultSettings()),
		getQuestionFn:  func(context.Context, int64) (store.Question, error) { return q, nil },
		countReportsFn: func(context.Context, int64) (int, error) { return 2, nil },
		hideQuestionFn: func(context.Context, int64) error {
			hidden = true
			return nil
		},
	}
	svc, deps := newTestService(fs)

	payload, err := svc.Report(context.Background(), citizen, 71, ReportInput{Reason: "spam"})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !hidden || payload["hidden"] != true {
		t.Fatalf("expected the question to be hidden, payload %v", payload)
	}
	if len(deps.search.deleted) != 1 || deps.search.deleted[0] != 71 {
		t.Fatalf("expected question dropped from the index, got %v", deps.search.deleted)
	}
}

func TestReportBelowThreshold(t *testing.T) {
	q := publishedQuestion(72)
	fs := &fakeStore{
		getComponentFn: openComponent(permission.DefaultSettings()),
		getQuestionFn:  func(context.Context, int64) (store.Question, error) { return q, nil },
		countReportsFn: func(context.Context, int64) (int, error) { return 1, nil },
		hideQuestionFn: func(context.Context, int64) error {
			t.Fatal("must not hide below the threshold")
			return nil
		},
	}
	svc, _ := newTestService(fs)

	payload, err := svc.Report(context.Background(), citizen, 72, ReportInput{Reason: "offensive"})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if payload["hidden"] != false {
		t.Fatalf("expected hidden=false, got %v", payload["hidden"])
	}
}

func TestReportUnknownReason(t *testing.T) {
	q := publishedQuestion(73)
	fs := &fakeStore{
		getComponentFn: openComponent(permission.DefaultSettings()),
		getQuestionFn:  func(context.Context, int64) (store.Question, error) { return q, nil },
	}
	svc, _ := newTestService(fs)

	_, err := svc.Report(context.Background(), citizen, 73, ReportInput{Reason: "dislike"})
	if code := domainCode(t, err); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestAddNoteAdminOnly(t *testing.T) {
	q := publishedQuestion(81)
	var inserted store.QuestionNote
	fs := &fakeStore{
		getComponentFn: openComponent(permission.DefaultSettings()),
		getQuestionFn:  func(context.Context, int64) (store.Question, error) { return q, nil },
		insertNoteFn: func(_ context.Context, note store.QuestionNote) error {
			inserted = note
			return nil
		},
		listNotesFn: func(context.Context, int64) ([]store.QuestionNote, error) {
			return []store.QuestionNote{{ID: 1, QuestionID: 81, AuthorID: admin.UserID, Body: "Needs legal review"}}, nil
		},
	}
	svc, _ := newTestService(fs)

	if _, err := svc.AddNote(context.Background(), citizen, 81, NoteInput{Body: "hi"}); domainCode(t, err) != "FORBIDDEN" {
		t.Fatal("expected citizens to be denied notes")
	}

	payload, err := svc.AddNote(context.Background(), admin, 81, NoteInput{Body: "Needs legal review"})
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if inserted.AuthorID != admin.UserID || inserted.Body != "Needs legal review" {
		t.Fatalf("unexpected stored note %+v", inserted)
	}
	notes, ok := payload["notes"].([]map[string]any)
	if !ok || len(notes) != 1 {
		t.Fatalf("expected one note in the payload, got %v", payload["notes"])
	}
}

func TestAddNoteRequiresBody(t *testing.T) {
	q := publishedQuestion(82)
	fs := &fakeStore{
		getComponentFn: openComponent(permission.DefaultSettings()),
		getQuestionFn:  func(context.Context, int64) (store.Question, error) { return q, nil },
	}
	svc, _ := newTestService(fs)

	_, err := svc.AddNote(context.Background(), admin, 82, NoteInput{Body: "   "})
	if code := domainCode(t, err); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}
