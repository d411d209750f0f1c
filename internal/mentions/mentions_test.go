package mentions

import (
	"fmt"
	"strings"
	"testing"
)

func mapResolver(questions map[int64]Question) Resolver {
	return ResolverFunc(func(id int64) (Question, bool) {
		q, ok := questions[id]
		return q, ok
	})
}

func budgetPlan() map[int64]Question {
	return map[int64]Question{
		42: {ID: 42, Title: "Budget plan", Path: "/components/3/questions/42"},
	}
}

func TestParseBareMention(t *testing.T) {
	content := "See ~42 for details"
	rewritten, meta := Parse(content, mapResolver(budgetPlan()))

	want := "See gid://agora/Question/42 for details"
	if rewritten != want {
		t.Fatalf("Parse = %q, want %q", rewritten, want)
	}
	if len(meta.MentionedIDs) != 1 || meta.MentionedIDs[0] != 42 {
		t.Fatalf("metadata = %v, want [42]", meta.MentionedIDs)
	}
}

func TestParseURLMention(t *testing.T) {
	content := "Already raised in https://agora.example.org/processes/city/f/3/questions/42 last week"
	rewritten, meta := Parse(content, mapResolver(budgetPlan()))

	if !strings.Contains(rewritten, "gid://agora/Question/42") {
		t.Fatalf("URL not rewritten: %q", rewritten)
	}
	if strings.Contains(rewritten, "https://") {
		t.Fatalf("original URL left behind: %q", rewritten)
	}
	if len(meta.MentionedIDs) != 1 || meta.MentionedIDs[0] != 42 {
		t.Fatalf("metadata = %v, want [42]", meta.MentionedIDs)
	}
}

func TestParseUnresolvableLeftUnchanged(t *testing.T) {
	resolver := mapResolver(nil)
	for _, content := range []string{
		"See ~999 for details",
		"See https://agora.example.org/f/3/questions/999 for details",
	} {
		rewritten, meta := Parse(content, resolver)
		if rewritten != content {
			t.Errorf("Parse(%q) = %q, want unchanged", content, rewritten)
		}
		if len(meta.MentionedIDs) != 0 {
			t.Errorf("metadata for unresolved mention = %v, want empty", meta.MentionedIDs)
		}
	}
}

func TestParseIdentityWithoutMarkers(t *testing.T) {
	content := "Plain text with numbers 12345 and a url https://example.org/about"
	rewritten, meta := Parse(content, mapResolver(budgetPlan()))
	if rewritten != content {
		t.Fatalf("Parse changed marker-free content: %q", rewritten)
	}
	if len(meta.MentionedIDs) != 0 {
		t.Fatalf("metadata = %v, want empty", meta.MentionedIDs)
	}
}

func TestParseIdempotent(t *testing.T) {
	resolver := mapResolver(budgetPlan())
	once, _ := Parse("See ~42 and https://agora.example.org/f/3/questions/42", resolver)
	twice, meta := Parse(once, resolver)
	if twice != once {
		t.Fatalf("re-parse rewrote content: %q -> %q", once, twice)
	}
	if len(meta.MentionedIDs) != 0 {
		t.Fatalf("re-parse recorded mentions: %v", meta.MentionedIDs)
	}
}

func TestParseDuplicatesCollapsedInOrder(t *testing.T) {
	questions := budgetPlan()
	questions[7] = Question{ID: 7, Title: "Bike lanes", Path: "/components/3/questions/7"}

	_, meta := Parse("~42 then ~7 then ~42 again", mapResolver(questions))
	if len(meta.MentionedIDs) != 2 || meta.MentionedIDs[0] != 42 || meta.MentionedIDs[1] != 7 {
		t.Fatalf("metadata = %v, want [42 7]", meta.MentionedIDs)
	}
}

func TestRenderLink(t *testing.T) {
	content := "See gid://agora/Question/42 for details"
	rendered := Render(content, mapResolver(budgetPlan()))

	want := `See <a href="/components/3/questions/42">Budget plan</a> for details`
	if rendered != want {
		t.Fatalf("Render = %q, want %q", rendered, want)
	}
}

func TestRenderEscapesTitle(t *testing.T) {
	resolver := mapResolver(map[int64]Question{
		9: {ID: 9, Title: `<script>alert("x")</script>`, Path: "/components/1/questions/9"},
	})
	rendered := Render("gid://agora/Question/9", resolver)
	if strings.Contains(rendered, "<script>") {
		t.Fatalf("title not escaped: %q", rendered)
	}
	if !strings.Contains(rendered, "&lt;script&gt;") {
		t.Fatalf("expected escaped title in %q", rendered)
	}
}

func TestRenderUnresolvedFallback(t *testing.T) {
	rendered := Render("See gid://agora/Question/42 for details", mapResolver(nil))
	want := "See ~42 for details"
	if rendered != want {
		t.Fatalf("Render = %q, want %q", rendered, want)
	}
}

func TestRenderIdentityWithoutTokens(t *testing.T) {
	content := "No tokens here, just ~42 raw"
	if got := Render(content, mapResolver(budgetPlan())); got != content {
		t.Fatalf("Render changed token-free content: %q", got)
	}
}

func TestParseThenRenderRoundTrip(t *testing.T) {
	resolver := mapResolver(budgetPlan())
	rewritten, _ := Parse("See ~42 for details", resolver)
	rendered := Render(rewritten, resolver)

	want := fmt.Sprintf(`See <a href=%q>Budget plan</a> for details`, "/components/3/questions/42")
	if rendered != want {
		t.Fatalf("round trip = %q, want %q", rendered, want)
	}
}
