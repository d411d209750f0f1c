package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search queries the questions table using plainto_tsquery and ts_rank, with
// ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	where, args := searchWhere(tsQuery, q)

	countSQL := "SELECT count(*) FROM questions q WHERE " + where

	dataSQL := fmt.Sprintf(`
		SELECT q.id, q.title,
			ts_headline('english', coalesce(q.body, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
			q.component_id, q.state, coalesce(q.reference, '')
		FROM questions q
		WHERE %s
		ORDER BY ts_rank(q.fts, %s) DESC
		LIMIT %d OFFSET %d`,
		tsQuery, where, tsQuery, limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet, &r.ComponentID, &r.State, &r.Reference); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// searchWhere mirrors the Meilisearch index: hidden questions and
// unpublished drafts never match, so the fallback agrees with the
// primary path.
func searchWhere(tsQuery string, q Query) (string, []any) {
	args := []any{q.Text}
	argN := 2

	where := "q.fts @@ " + tsQuery +
		" AND q.hidden_at IS NULL AND q.published_at IS NOT NULL AND q.state <> 'draft'"
	if q.ComponentID != 0 {
		where += fmt.Sprintf(" AND q.component_id = $%d", argN)
		args = append(args, q.ComponentID)
		argN++
	}
	if q.CategoryID != 0 {
		where += fmt.Sprintf(" AND q.category_id = $%d", argN)
		args = append(args, q.CategoryID)
		argN++
	}
	if q.State != "" {
		where += fmt.Sprintf(" AND q.state = $%d", argN)
		args = append(args, q.State)
	} else if !q.IncludeWithdrawn {
		where += " AND q.state <> 'withdrawn'"
	}
	return where, args
}

// LoadAllRecords returns all indexable questions for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]QuestionRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT q.id, q.title, q.body,
			coalesce(q.answer->>'en', ''),
			q.component_id, coalesce(q.category_id, 0), q.state, coalesce(q.reference, '')
		FROM questions q
		WHERE q.hidden_at IS NULL AND q.published_at IS NOT NULL AND q.state <> 'draft'
	`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	questions := make([]QuestionRecord, 0)
	for rows.Next() {
		var q QuestionRecord
		if err := rows.Scan(&q.ID, &q.Title, &q.Body, &q.Answer, &q.ComponentID, &q.CategoryID, &q.State, &q.Reference); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}

	return questions, nil
}
