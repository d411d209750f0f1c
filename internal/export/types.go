// Package export produces downloadable snapshots of a component's questions
// in CSV and PDF formats.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// Request contains parameters for an export operation
type Request struct {
	ComponentID      int64
	Format           Format
	IncludeWithdrawn bool
}

// QuestionInfo holds one question row for export
type QuestionInfo struct {
	ID               int64
	Reference        string
	Title            string
	Body             string
	State            string
	Answer           string
	AnsweredAt       *time.Time
	Authors          []string
	VoteCount        int
	EndorsementCount int
	CreatedAt        time.Time
}

// ComponentInfo holds component metadata for export
type ComponentInfo struct {
	ID         int64
	Name       string
	SpaceTitle string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
