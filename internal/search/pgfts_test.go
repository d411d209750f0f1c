package search

import (
	"strings"
	"testing"
)

func TestSearchWhereExcludesInvisibleQuestions(t *testing.T) {
	where, args := searchWhere("plainto_tsquery('english', $1)", Query{Text: "bike"})
	for _, clause := range []string{
		"q.hidden_at IS NULL",
		"q.published_at IS NOT NULL",
		"q.state <> 'draft'",
		"q.state <> 'withdrawn'",
	} {
		if !strings.Contains(where, clause) {
			t.Fatalf("where %q is missing %q", where, clause)
		}
	}
	if len(args) != 1 {
		t.Fatalf("args = %v, want just the query text", args)
	}
}

func TestSearchWherePlaceholdersStayAligned(t *testing.T) {
	where, args := searchWhere("plainto_tsquery('english', $1)", Query{
		Text:        "bike",
		ComponentID: 3,
		CategoryID:  5,
		State:       "accepted",
	})
	if len(args) != 4 {
		t.Fatalf("args = %v, want 4", args)
	}
	for _, placeholder := range []string{"$2", "$3", "$4"} {
		if !strings.Contains(where, placeholder) {
			t.Fatalf("where %q is missing %s", where, placeholder)
		}
	}
	if strings.Contains(where, "withdrawn") {
		t.Fatalf("explicit state filter must override the withdrawn default: %q", where)
	}
}
