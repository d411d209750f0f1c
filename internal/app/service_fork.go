package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"agora/api/internal/fork"
	"agora/api/internal/lifecycle"
	"agora/api/internal/permission"
	"agora/api/internal/revision"
	"agora/api/internal/store"
)

type ForkInput struct {
	// Kind is one of copy, split or merge.
	Kind              string  `json:"kind"`
	QuestionIDs       []int64 `json:"questionIds"`
	TargetComponentID int64   `json:"targetComponentId"`
	// Title and Body override the merged question's text. Merge only.
	Title string `json:"title"`
	Body  string `json:"body"`
}

type ImportInput struct {
	// Document is the participatory text in the markdown-ish convention:
	// "# " opens a section, "## " a subsection, and every paragraph in
	// between becomes an article.
	Document string `json:"document"`
}

// Fork runs the admin copy, split and merge operations. All of them derive
// new official questions from the selected ones and leave provenance links
// behind; the originals are never modified.
func (s *Service) Fork(ctx context.Context, identity Identity, componentID int64, input ForkInput) (map[string]any, error) {
	kind := strings.ToLower(strings.TrimSpace(input.Kind))
	switch kind {
	case "copy", "split", "merge":
	default:
		return nil, errValidation(fmt.Sprintf("unknown fork kind %q", input.Kind), nil)
	}
	if len(input.QuestionIDs) == 0 {
		return nil, errValidation("select at least one question", nil)
	}
	if kind == "merge" && len(input.QuestionIDs) < 2 {
		return nil, errValidation("merging needs at least two questions", nil)
	}

	component, err := s.store.GetComponent(ctx, componentID)
	if err != nil {
		return nil, err
	}
	if err := s.decide(permission.Request{
		Actor:    identity.actor(),
		Scope:    permission.ScopeAdmin,
		Action:   kind,
		Subject:  permission.SubjectQuestion,
		Settings: component.Settings,
	}); err != nil {
		return nil, err
	}

	targetID := input.TargetComponentID
	if targetID == 0 {
		targetID = componentID
	}
	if targetID != componentID {
		if _, err := s.store.GetComponent(ctx, targetID); err != nil {
			return nil, err
		}
	}

	candidates := make([]fork.Candidate, 0, len(input.QuestionIDs))
	for _, id := range input.QuestionIDs {
		q, err := s.store.GetQuestion(ctx, id)
		if err != nil {
			return nil, err
		}
		if q.ComponentID != componentID {
			return nil, errValidation(fmt.Sprintf("question %d is not part of this component", id), nil)
		}
		candidate := fork.Candidate{Question: q}
		coauthors, err := s.store.ListCoauthors(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, c := range coauthors {
			if c.Official() {
				candidate.Official = true
			}
		}
		candidates = append(candidates, candidate)
	}
	if err := fork.ValidateSameComponent(candidates, targetID); err != nil {
		return nil, errValidation(err.Error(), nil)
	}

	var created []store.Question
	switch kind {
	case "merge":
		merged, err := s.forkOne(ctx, identity, candidates[0].Question, fork.Overrides{
			Title:       firstNonEmpty(input.Title, candidates[0].Question.Title),
			Body:        firstNonEmpty(input.Body, mergeBodies(candidates)),
			ComponentID: targetID,
		}, input.QuestionIDs)
		if err != nil {
			return nil, err
		}
		created = append(created, merged)
	case "split":
		// A split yields two questions per original: the untouched copy
		// and a duplicate the admin then edits down.
		for _, candidate := range candidates {
			for i := 0; i < 2; i++ {
				q, err := s.forkOne(ctx, identity, candidate.Question, fork.Overrides{ComponentID: targetID}, []int64{candidate.Question.ID})
				if err != nil {
					return nil, err
				}
				created = append(created, q)
			}
		}
	default:
		for _, candidate := range candidates {
			q, err := s.forkOne(ctx, identity, candidate.Question, fork.Overrides{ComponentID: targetID}, []int64{candidate.Question.ID})
			if err != nil {
				return nil, err
			}
			created = append(created, q)
		}
	}

	items := make([]map[string]any, 0, len(created))
	for _, q := range created {
		items = append(items, s.questionSummary(q))
	}
	return map[string]any{"kind": kind, "questions": items}, nil
}

// forkOne persists one derived question as official, links it back to each
// source and starts its revision history.
func (s *Service) forkOne(ctx context.Context, identity Identity, original store.Question, overrides fork.Overrides, sourceIDs []int64) (store.Question, error) {
	derived := fork.Copy(original, overrides)
	now := time.Now()
	derived.PublishedAt = &now

	created, err := s.store.InsertQuestion(ctx, derived, store.Coauthorship{})
	if err != nil {
		return store.Question{}, fmt.Errorf("insert forked question: %w", err)
	}
	for _, sourceID := range sourceIDs {
		if _, err := s.store.InsertResourceLink(ctx, store.ResourceLink{
			Name:   store.LinkCopiedFromComponent,
			FromID: sourceID,
			ToID:   created.ID,
		}); err != nil {
			return store.Question{}, fmt.Errorf("link forked question: %w", err)
		}
	}
	if err := s.revisions.EnsureQuestionRepo(created.ID, revision.Content{Title: created.Title, Body: created.Body}, identity.Name); err != nil {
		log.Printf("app: init revision repo for %d: %v", created.ID, err)
	}
	s.indexQuestion(created)
	return created, nil
}

func mergeBodies(candidates []fork.Candidate) string {
	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		parts = append(parts, c.Question.Body)
	}
	return strings.Join(parts, "\n\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ImportParticipatoryText turns a structured document into positioned
// draft questions: sections, subsections and articles in reading order.
// Drafts stay invisible until PublishParticipatoryText.
func (s *Service) ImportParticipatoryText(ctx context.Context, identity Identity, componentID int64, input ImportInput) (map[string]any, error) {
	component, err := s.store.GetComponent(ctx, componentID)
	if err != nil {
		return nil, err
	}
	if err := s.decide(permission.Request{
		Actor:    identity.actor(),
		Scope:    permission.ScopeAdmin,
		Action:   "import",
		Subject:  permission.SubjectQuestion,
		Settings: component.Settings,
	}); err != nil {
		return nil, err
	}
	if !component.Settings.ParticipatoryTextsEnabled {
		return nil, errValidation("participatory texts are not enabled on this component", nil)
	}

	parts := parseParticipatoryText(input.Document)
	if len(parts) == 0 {
		return nil, errValidation("the document contains no sections or articles", nil)
	}

	items := make([]map[string]any, 0, len(parts))
	for _, part := range parts {
		position := part.Position
		q := store.Question{
			ComponentID: componentID,
			Title:       part.Title,
			Body:        part.Body,
			State:       lifecycle.StateDraft,
			Position:    &position,
			Level:       part.Level,
		}
		created, err := s.store.InsertQuestion(ctx, q, store.Coauthorship{})
		if err != nil {
			return nil, fmt.Errorf("insert %s %d: %w", part.Level, position, err)
		}
		if err := s.revisions.EnsureQuestionRepo(created.ID, revision.Content{Title: created.Title, Body: created.Body}, identity.Name); err != nil {
			log.Printf("app: init revision repo for %d: %v", created.ID, err)
		}
		items = append(items, s.questionSummary(created))
	}
	return map[string]any{"imported": len(items), "questions": items}, nil
}

// PublishParticipatoryText flips every imported draft of the component to
// published pending questions.
func (s *Service) PublishParticipatoryText(ctx context.Context, identity Identity, componentID int64) (map[string]any, error) {
	component, err := s.store.GetComponent(ctx, componentID)
	if err != nil {
		return nil, err
	}
	if err := s.decide(permission.Request{
		Actor:    identity.actor(),
		Scope:    permission.ScopeAdmin,
		Action:   "import",
		Subject:  permission.SubjectQuestion,
		Settings: component.Settings,
	}); err != nil {
		return nil, err
	}

	drafts, err := s.store.ListQuestions(ctx, componentID, lifecycle.Filter{
		States:        []lifecycle.State{lifecycle.StateDraft},
		IncludeDrafts: true,
	})
	if err != nil {
		return nil, err
	}

	published := 0
	for _, draft := range drafts {
		if err := s.store.PublishQuestion(ctx, draft.ID); err != nil {
			return nil, fmt.Errorf("publish draft %d: %w", draft.ID, err)
		}
		published++
		draft.State = lifecycle.StatePending
		now := time.Now()
		draft.PublishedAt = &now
		s.indexQuestion(draft)
	}
	return map[string]any{"published": published}, nil
}

type textPart struct {
	Title    string
	Body     string
	Level    string
	Position int
}

// parseParticipatoryText walks the document line by line: "# " headings
// open sections, "## " headings subsections, and each paragraph of plain
// text becomes an article whose title is its position number.
func parseParticipatoryText(document string) []textPart {
	var parts []textPart
	position := 0

	add := func(title, body, level string) {
		position++
		parts = append(parts, textPart{Title: title, Body: body, Level: level, Position: position})
	}

	var paragraph []string
	article := 0
	flush := func() {
		if len(paragraph) == 0 {
			return
		}
		article++
		add(fmt.Sprintf("Article %d", article), strings.Join(paragraph, "\n"), "article")
		paragraph = nil
	}

	for _, line := range strings.Split(document, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "## "):
			flush()
			title := strings.TrimSpace(strings.TrimPrefix(trimmed, "## "))
			add(title, title, "sub-section")
		case strings.HasPrefix(trimmed, "# "):
			flush()
			title := strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
			add(title, title, "section")
		case trimmed == "":
			flush()
		default:
			paragraph = append(paragraph, trimmed)
		}
	}
	flush()
	return parts
}
