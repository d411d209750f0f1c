package export

import (
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeStore struct {
	component ComponentInfo
	questions []QuestionInfo
	err       error
}

func (f *fakeStore) GetExportComponent(ctx context.Context, id int64) (ComponentInfo, error) {
	if f.err != nil {
		return ComponentInfo{}, f.err
	}
	return f.component, nil
}

func (f *fakeStore) ListExportQuestions(ctx context.Context, componentID int64, includeWithdrawn bool) ([]QuestionInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.questions, nil
}

func sampleQuestions() []QuestionInfo {
	answered := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	return []QuestionInfo{
		{
			ID:               1,
			Reference:        "AGO-QUE-2026-1",
			Title:            "How will the park be funded?",
			Body:             "The plan does not mention funding.",
			State:            "accepted",
			Answer:           "Through the municipal budget.",
			AnsweredAt:       &answered,
			Authors:          []string{"Avery", "Blake"},
			VoteCount:        12,
			EndorsementCount: 3,
			CreatedAt:        time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:        2,
			Reference: "AGO-QUE-2026-2",
			Title:     "When do works start?",
			Body:      "No timeline given.",
			State:     "",
			Authors:   []string{"Casey"},
			CreatedAt: time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestExportCSV(t *testing.T) {
	store := &fakeStore{
		component: ComponentInfo{ID: 5, Name: "Council Questions", SpaceTitle: "City Budget"},
		questions: sampleQuestions(),
	}
	svc := NewService(store)

	result, err := svc.Export(context.Background(), Request{ComponentID: 5, Format: FormatCSV})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.MimeType != "text/csv" {
		t.Errorf("MimeType = %q, want text/csv", result.MimeType)
	}
	if result.Filename != "Council-Questions.csv" {
		t.Errorf("Filename = %q", result.Filename)
	}

	rows, err := csv.NewReader(strings.NewReader(string(result.Data))).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "id" || rows[0][1] != "reference" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][1] != "AGO-QUE-2026-1" {
		t.Errorf("unexpected reference: %q", rows[1][1])
	}
	if rows[1][5] != "Through the municipal budget." {
		t.Errorf("unexpected answer: %q", rows[1][5])
	}
	if rows[1][7] != "Avery; Blake" {
		t.Errorf("unexpected authors: %q", rows[1][7])
	}
	// Pending state renders as "pending", not empty.
	if rows[2][4] != "pending" {
		t.Errorf("unexpected state: %q", rows[2][4])
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc := NewService(&fakeStore{})
	if _, err := svc.Export(context.Background(), Request{Format: Format("xml")}); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestExportStoreError(t *testing.T) {
	svc := NewService(&fakeStore{err: errors.New("db down")})
	if _, err := svc.Export(context.Background(), Request{Format: FormatCSV}); err == nil {
		t.Error("expected error when store fails")
	}
}

func TestRenderQuestionsHTML(t *testing.T) {
	component := ComponentInfo{Name: "Council Questions", SpaceTitle: "City Budget"}
	html, err := RenderQuestionsHTML(component, sampleQuestions())
	if err != nil {
		t.Fatalf("RenderQuestionsHTML() error = %v", err)
	}
	for _, want := range []string{
		"Council Questions",
		"City Budget",
		"How will the park be funded?",
		"AGO-QUE-2026-1",
		"Through the municipal budget.",
		"12 votes",
		"pending",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
}

func TestRenderQuestionsHTMLEscapes(t *testing.T) {
	component := ComponentInfo{Name: "C"}
	questions := []QuestionInfo{{Title: `<script>alert("x")</script>`}}
	html, err := RenderQuestionsHTML(component, questions)
	if err != nil {
		t.Fatalf("RenderQuestionsHTML() error = %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("question title should be escaped")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Council Questions", "Council-Questions"},
		{"", "questions"},
		{"a/b\\c", "abc"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHTMLDataURL(t *testing.T) {
	got := htmlDataURL("a b<c>")
	want := "data:text/html;charset=utf-8,a%20b%3Cc%3E"
	if got != want {
		t.Errorf("htmlDataURL() = %q, want %q", got, want)
	}
}
