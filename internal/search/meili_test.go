package search

import (
	"encoding/json"
	"testing"

	meili "github.com/meilisearch/meilisearch-go"
)

func rawHit(t *testing.T, fields map[string]any) meili.Hit {
	t.Helper()
	hit := meili.Hit{}
	for key, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			t.Fatalf("marshal %s: %v", key, err)
		}
		hit[key] = raw
	}
	return hit
}

func TestHitToResult(t *testing.T) {
	hit := rawHit(t, map[string]any{
		"id":          int64(42),
		"componentId": int64(3),
		"state":       "accepted",
		"reference":   "AGO-QUE-2026-42",
		"title":       "Bike lanes",
		"body":        "When will the lanes open?",
		"_formatted": map[string]string{
			"title": "<em>Bike</em> lanes",
			"body":  "When will the <em>lanes</em> open?",
		},
	})

	result := hitToResult(hit)
	if result.ID != 42 || result.ComponentID != 3 {
		t.Fatalf("unexpected ids: %+v", result)
	}
	if result.Title != "<em>Bike</em> lanes" {
		t.Fatalf("expected formatted title, got %q", result.Title)
	}
	if result.Snippet != "When will the <em>lanes</em> open?" {
		t.Fatalf("expected formatted body snippet, got %q", result.Snippet)
	}
	if result.Reference != "AGO-QUE-2026-42" {
		t.Fatalf("unexpected reference %q", result.Reference)
	}
}

func TestHitToResultPrefersAnswerSnippet(t *testing.T) {
	hit := rawHit(t, map[string]any{
		"id":   int64(7),
		"body": "Original body.",
		"_formatted": map[string]string{
			"answer": "Work starts in <em>March</em>.",
			"body":   "Original <em>body</em>.",
		},
	})
	if got := hitToResult(hit).Snippet; got != "Work starts in <em>March</em>." {
		t.Fatalf("expected the answer snippet, got %q", got)
	}
}

func TestDecodeIntAcceptsStringIDs(t *testing.T) {
	hit := rawHit(t, map[string]any{"id": "19"})
	if got := decodeInt(hit, "id"); got != 19 {
		t.Fatalf("expected 19, got %d", got)
	}
	if got := decodeInt(hit, "missing"); got != 0 {
		t.Fatalf("expected 0 for missing key, got %d", got)
	}
}

func TestFirstNonBlank(t *testing.T) {
	if got := firstNonBlank("  ", "", "value", "other"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
	if got := firstNonBlank("", "  "); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
