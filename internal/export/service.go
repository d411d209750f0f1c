package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetExportComponent(ctx context.Context, id int64) (ComponentInfo, error)
	ListExportQuestions(ctx context.Context, componentID int64, includeWithdrawn bool) ([]QuestionInfo, error)
}

// Service provides question export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	component, err := s.store.GetExportComponent(ctx, req.ComponentID)
	if err != nil {
		return nil, fmt.Errorf("get component: %w", err)
	}

	questions, err := s.store.ListExportQuestions(ctx, req.ComponentID, req.IncludeWithdrawn)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	switch req.Format {
	case FormatCSV:
		return exportCSV(component, questions)
	case FormatPDF:
		html, err := RenderQuestionsHTML(component, questions)
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		return exportPDF(html, component.Name)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

// exportCSV writes one row per question.
func exportCSV(component ComponentInfo, questions []QuestionInfo) (*Result, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"id", "reference", "title", "body", "state", "answer", "answered_at",
		"authors", "votes", "endorsements", "created_at",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, q := range questions {
		answeredAt := ""
		if q.AnsweredAt != nil {
			answeredAt = q.AnsweredAt.Format("2006-01-02 15:04:05")
		}
		row := []string{
			strconv.FormatInt(q.ID, 10),
			q.Reference,
			q.Title,
			q.Body,
			displayState(q.State),
			q.Answer,
			answeredAt,
			strings.Join(q.Authors, "; "),
			strconv.Itoa(q.VoteCount),
			strconv.Itoa(q.EndorsementCount),
			q.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: sanitizeFilename(component.Name) + ".csv",
		MimeType: "text/csv",
	}, nil
}

// displayState maps the empty pending state to a readable label.
func displayState(state string) string {
	if state == "" {
		return "pending"
	}
	return state
}
