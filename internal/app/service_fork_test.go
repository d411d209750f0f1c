package app

import (
	"context"
	"database/sql"
	"testing"

	"agora/api/internal/lifecycle"
	"agora/api/internal/permission"
	"agora/api/internal/store"
)

func officialQuestion(id int64) (store.Question, func(context.Context, int64) ([]store.Coauthorship, error)) {
	q := publishedQuestion(id)
	coauthors := func(context.Context, int64) ([]store.Coauthorship, error) {
		return []store.Coauthorship{{QuestionID: id}}, nil
	}
	return q, coauthors
}

func TestForkCopyCreatesLinkedQuestion(t *testing.T) {
	original, coauthors := officialQuestion(101)
	var inserted store.Question
	var insertedCoauthor store.Coauthorship
	var link store.ResourceLink
	fs := &fakeStore{
		getComponentFn:  openComponent(permission.DefaultSettings()),
		getQuestionFn:   func(context.Context, int64) (store.Question, error) { return original, nil },
		listCoauthorsFn: coauthors,
		insertQuestionFn: func(_ context.Context, q store.Question, c store.Coauthorship) (store.Question, error) {
			inserted, insertedCoauthor = q, c
			q.ID = 102
			return q, nil
		},
		insertResourceLinkFn: func(_ context.Context, l store.ResourceLink) (store.ResourceLink, error) {
			link = l
			return l, nil
		},
	}
	svc, deps := newTestService(fs)

	payload, err := svc.Fork(context.Background(), admin, 1, ForkInput{
		Kind:              "copy",
		QuestionIDs:       []int64{101},
		TargetComponentID: 2,
	})
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	if inserted.ComponentID != 2 || inserted.Title != original.Title {
		t.Fatalf("unexpected copy: %+v", inserted)
	}
	if inserted.State != lifecycle.StatePending || inserted.PublishedAt == nil {
		t.Fatalf("copies start as published pending questions, got %+v", inserted)
	}
	if !insertedCoauthor.Official() {
		t.Fatalf("forked questions are official, got %+v", insertedCoauthor)
	}
	if link.Name != store.LinkCopiedFromComponent || link.FromID != 101 || link.ToID != 102 {
		t.Fatalf("unexpected provenance link: %+v", link)
	}
	if payload["kind"] != "copy" {
		t.Fatalf("expected copy payload, got %v", payload["kind"])
	}
	if len(deps.revisions.repos) != 1 {
		t.Fatalf("expected one revision repo, got %v", deps.revisions.repos)
	}
}

func TestForkSplitYieldsTwoQuestions(t *testing.T) {
	original, coauthors := officialQuestion(103)
	count := int64(0)
	fs := &fakeStore{
		getComponentFn:  openComponent(permission.DefaultSettings()),
		getQuestionFn:   func(context.Context, int64) (store.Question, error) { return original, nil },
		listCoauthorsFn: coauthors,
		insertQuestionFn: func(_ context.Context, q store.Question, _ store.Coauthorship) (store.Question, error) {
			count++
			q.ID = 200 + count
			return q, nil
		},
	}
	svc, _ := newTestService(fs)

	payload, err := svc.Fork(context.Background(), admin, 1, ForkInput{
		Kind:              "split",
		QuestionIDs:       []int64{103},
		TargetComponentID: 2,
	})
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	questions := payload["questions"].([]map[string]any)
	if len(questions) != 2 {
		t.Fatalf("expected two questions from the split, got %d", len(questions))
	}
}

func TestForkMergeCombinesBodies(t *testing.T) {
	first, coauthors := officialQuestion(104)
	second := publishedQuestion(105)
	second.Body = "Second body."
	var inserted store.Question
	fs := &fakeStore{
		getComponentFn: openComponent(permission.DefaultSettings()),
		getQuestionFn: func(_ context.Context, id int64) (store.Question, error) {
			switch id {
			case 104:
				return first, nil
			case 105:
				return second, nil
			}
			return store.Question{}, sql.ErrNoRows
		},
		listCoauthorsFn: coauthors,
		insertQuestionFn: func(_ context.Context, q store.Question, _ store.Coauthorship) (store.Question, error) {
			inserted = q
			q.ID = 106
			return q, nil
		},
	}
	svc, _ := newTestService(fs)

	if _, err := svc.Fork(context.Background(), admin, 1, ForkInput{
		Kind:              "merge",
		QuestionIDs:       []int64{104, 105},
		TargetComponentID: 2,
	}); err != nil {
		t.Fatalf("Fork: %v", err)
	}
	if inserted.Body != first.Body+"\n\n"+second.Body {
		t.Fatalf("unexpected merged body: %q", inserted.Body)
	}
}

func TestForkMergeNeedsTwoQuestions(t *testing.T) {
	fs := &fakeStore{getComponentFn: openComponent(permission.DefaultSettings())}
	svc, _ := newTestService(fs)

	_, err := svc.Fork(context.Background(), admin, 1, ForkInput{Kind: "merge", QuestionIDs: []int64{101}})
	if code := domainCode(t, err); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestForkRequiresAdmin(t *testing.T) {
	fs := &fakeStore{getComponentFn: openComponent(permission.DefaultSettings())}
	svc, _ := newTestService(fs)

	_, err := svc.Fork(context.Background(), citizen, 1, ForkInput{Kind: "copy", QuestionIDs: []int64{101}})
	if code := domainCode(t, err); code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %s", code)
	}
}

func TestForkSameComponentEngagementGuard(t *testing.T) {
	engaged := publishedQuestion(107)
	engaged.VoteCount = 4
	fs := &fakeStore{
		getComponentFn: openComponent(permission.DefaultSettings()),
		getQuestionFn:  func(context.Context, int64) (store.Question, error) { return engaged, nil },
		listCoauthorsFn: func(context.Context, int64) ([]store.Coauthorship, error) {
			return []store.Coauthorship{{QuestionID: 107}}, nil
		},
	}
	svc, _ := newTestService(fs)

	// Same-component copy of an engaged question must be rejected.
	_, err := svc.Fork(context.Background(), admin, 1, ForkInput{Kind: "copy", QuestionIDs: []int64{107}})
	if code := domainCode(t, err); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestImportParticipatoryText(t *testing.T) {
	settings := permission.DefaultSettings()
	settings.ParticipatoryTextsEnabled = true
	var inserted []store.Question
	fs := &fakeStore{
		getComponentFn: openComponent(settings),
		insertQuestionFn: func(_ context.Context, q store.Question, _ store.Coauthorship) (store.Question, error) {
			inserted = append(inserted, q)
			q.ID = int64(len(inserted))
			return q, nil
		},
	}
	svc, _ := newTestService(fs)

	document := "# Mobility plan\n\n## Cycling\n\nBuild protected lanes on every arterial road.\n\nLower speed limits near schools.\n"
	payload, err := svc.ImportParticipatoryText(context.Background(), admin, 1, ImportInput{Document: document})
	if err != nil {
		t.Fatalf("ImportParticipatoryText: %v", err)
	}
	if payload["imported"] != 4 {
		t.Fatalf("expected 4 imported parts, got %v", payload["imported"])
	}
	levels := []string{"section", "sub-section", "article", "article"}
	for i, q := range inserted {
		if q.Level != levels[i] {
			t.Fatalf("part %d: expected level %s, got %s", i, levels[i], q.Level)
		}
		if q.Position == nil || *q.Position != i+1 {
			t.Fatalf("part %d: expected position %d, got %v", i, i+1, q.Position)
		}
		if q.State != lifecycle.StateDraft || q.PublishedAt != nil {
			t.Fatalf("part %d: imports must be unpublished drafts, got %+v", i, q)
		}
	}
	if inserted[0].Title != "Mobility plan" || inserted[2].Title != "Article 1" {
		t.Fatalf("unexpected titles: %q, %q", inserted[0].Title, inserted[2].Title)
	}
}

func TestImportDisabled(t *testing.T) {
	fs := &fakeStore{getComponentFn: openComponent(permission.DefaultSettings())}
	svc, _ := newTestService(fs)

	_, err := svc.ImportParticipatoryText(context.Background(), admin, 1, ImportInput{Document: "# S\n\nBody.\n"})
	if code := domainCode(t, err); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestImportEmptyDocument(t *testing.T) {
	settings := permission.DefaultSettings()
	settings.ParticipatoryTextsEnabled = true
	fs := &fakeStore{getComponentFn: openComponent(settings)}
	svc, _ := newTestService(fs)

	_, err := svc.ImportParticipatoryText(context.Background(), admin, 1, ImportInput{Document: "  \n\n  "})
	if code := domainCode(t, err); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestPublishParticipatoryText(t *testing.T) {
	draft := store.Question{ID: 301, ComponentID: 1, Title: "Article 1", State: lifecycle.StateDraft}
	published := make([]int64, 0, 1)
	fs := &fakeStore{
		getComponentFn: openComponent(permission.DefaultSettings()),
		listQuestionsFn: func(_ context.Context, _ int64, filter lifecycle.Filter) ([]store.Question, error) {
			if !filter.IncludeDrafts {
				t.Fatal("expected the draft filter")
			}
			return []store.Question{draft}, nil
		},
		publishQuestionFn: func(_ context.Context, id int64) error {
			published = append(published, id)
			return nil
		},
	}
	svc, deps := newTestService(fs)

	payload, err := svc.PublishParticipatoryText(context.Background(), admin, 1)
	if err != nil {
		t.Fatalf("PublishParticipatoryText: %v", err)
	}
	if payload["published"] != 1 || len(published) != 1 || published[0] != 301 {
		t.Fatalf("expected draft 301 published, got %v / %v", payload["published"], published)
	}
	if len(deps.search.indexed) != 1 {
		t.Fatalf("expected the published draft indexed, got %v", deps.search.indexed)
	}
}

func TestParseParticipatoryText(t *testing.T) {
	parts := parseParticipatoryText("# One\n\nFirst paragraph.\nStill first.\n\nSecond paragraph.\n\n## Two\n\nThird.\n")
	if len(parts) != 5 {
		t.Fatalf("expected 5 parts, got %d", len(parts))
	}
	if parts[1].Body != "First paragraph.\nStill first." {
		t.Fatalf("paragraph not joined: %q", parts[1].Body)
	}
	if parts[3].Level != "sub-section" || parts[3].Title != "Two" {
		t.Fatalf("unexpected sub-section: %+v", parts[3])
	}
	if parts[4].Title != "Article 3" {
		t.Fatalf("article numbering is global, got %q", parts[4].Title)
	}
}
