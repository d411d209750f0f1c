package store

import (
	"context"
	"fmt"
	"time"
)

// LinkCopiedFromComponent is the provenance link name fork operations use.
const LinkCopiedFromComponent = "copied_from_component"

func (s *PostgresStore) InsertResourceLink(ctx context.Context, link ResourceLink) (ResourceLink, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO resource_links (name, from_id, to_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`, link.Name, link.FromID, link.ToID).Scan(&link.ID)
	if err != nil {
		return ResourceLink{}, fmt.Errorf("insert resource link: %w", err)
	}
	return link, nil
}

// ListResourceLinks returns links touching the question from either side.
func (s *PostgresStore) ListResourceLinks(ctx context.Context, name string, questionID int64) ([]ResourceLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, from_id, to_id
		FROM resource_links
		WHERE name=$1 AND (from_id=$2 OR to_id=$2)
		ORDER BY id
	`, name, questionID)
	if err != nil {
		return nil, fmt.Errorf("list resource links: %w", err)
	}
	defer rows.Close()

	items := make([]ResourceLink, 0)
	for rows.Next() {
		var link ResourceLink
		if err := rows.Scan(&link.ID, &link.Name, &link.FromID, &link.ToID); err != nil {
			return nil, fmt.Errorf("scan resource link: %w", err)
		}
		items = append(items, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resource links: %w", err)
	}
	return items, nil
}

// --- amendments ---

func (s *PostgresStore) InsertAmendment(ctx context.Context, amendment Amendment) (Amendment, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO amendments (question_id, emendation_id, amender_id, state)
		VALUES ($1, $2, $3, 'evaluating')
		RETURNING id, state, created_at
	`, amendment.QuestionID, amendment.EmendationID, amendment.AmenderID).Scan(
		&amendment.ID, &amendment.State, &amendment.CreatedAt,
	)
	if err != nil {
		return Amendment{}, fmt.Errorf("insert amendment: %w", err)
	}
	return amendment, nil
}

func (s *PostgresStore) GetAmendment(ctx context.Context, amendmentID int64) (Amendment, error) {
	var a Amendment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, question_id, emendation_id, amender_id, state, created_at, decided_at
		FROM amendments
		WHERE id=$1
	`, amendmentID).Scan(&a.ID, &a.QuestionID, &a.EmendationID, &a.AmenderID, &a.State, &a.CreatedAt, &a.DecidedAt)
	if err != nil {
		return Amendment{}, err
	}
	return a, nil
}

func (s *PostgresStore) UpdateAmendmentState(ctx context.Context, amendmentID int64, state string, decidedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE amendments SET state=$2, decided_at=$3 WHERE id=$1
	`, amendmentID, state, decidedAt)
	if err != nil {
		return fmt.Errorf("update amendment state: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAmendments(ctx context.Context, questionID int64) ([]Amendment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question_id, emendation_id, amender_id, state, created_at, decided_at
		FROM amendments
		WHERE question_id=$1
		ORDER BY id
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("list amendments: %w", err)
	}
	defer rows.Close()

	items := make([]Amendment, 0)
	for rows.Next() {
		var a Amendment
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.EmendationID, &a.AmenderID, &a.State, &a.CreatedAt, &a.DecidedAt); err != nil {
			return nil, fmt.Errorf("scan amendment: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate amendments: %w", err)
	}
	return items, nil
}
