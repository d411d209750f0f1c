package store

import (
	"context"
	"fmt"
	"strings"

	"agora/api/internal/export"
)

// GetExportComponent loads the component metadata the export service needs.
func (s *PostgresStore) GetExportComponent(ctx context.Context, id int64) (export.ComponentInfo, error) {
	var info export.ComponentInfo
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.name, sp.title
		FROM components c
		JOIN spaces sp ON sp.id = c.space_id
		WHERE c.id=$1
	`, id).Scan(&info.ID, &info.Name, &info.SpaceTitle)
	if err != nil {
		return export.ComponentInfo{}, err
	}
	return info, nil
}

// ListExportQuestions returns one row per visible question of the component,
// with authors aggregated, ordered the way listings order them.
func (s *PostgresStore) ListExportQuestions(ctx context.Context, componentID int64, includeWithdrawn bool) ([]export.QuestionInfo, error) {
	query := `
		SELECT q.id, q.reference, q.title, q.body, q.state,
			coalesce(q.answer->>'en', ''), q.answered_at,
			q.vote_count, q.endorsement_count, q.created_at,
			coalesce(
				(SELECT string_agg(coalesce(u.display_name, g.name, 'Official'), '|' ORDER BY ca.id)
				 FROM coauthorships ca
				 LEFT JOIN users u ON u.id = ca.author_id
				 LEFT JOIN user_groups g ON g.id = ca.user_group_id
				 WHERE ca.question_id = q.id), '')
		FROM questions q
		WHERE q.component_id=$1 AND q.hidden_at IS NULL AND q.published_at IS NOT NULL`
	if !includeWithdrawn {
		query += ` AND q.state <> 'withdrawn'`
	}
	query += ` ORDER BY COALESCE(q.position, 2147483647), q.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, componentID)
	if err != nil {
		return nil, fmt.Errorf("list export questions: %w", err)
	}
	defer rows.Close()

	items := make([]export.QuestionInfo, 0)
	for rows.Next() {
		var (
			q       export.QuestionInfo
			authors string
		)
		if err := rows.Scan(&q.ID, &q.Reference, &q.Title, &q.Body, &q.State, &q.Answer,
			&q.AnsweredAt, &q.VoteCount, &q.EndorsementCount, &q.CreatedAt, &authors); err != nil {
			return nil, fmt.Errorf("scan export question: %w", err)
		}
		q.Authors = splitAuthors(authors)
		items = append(items, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate export questions: %w", err)
	}
	return items, nil
}

func splitAuthors(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, "|")
}
