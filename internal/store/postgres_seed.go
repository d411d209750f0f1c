package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"agora/api/internal/permission"
)

// EnsureDefaultComponent seeds an organization, a space and a questions
// component on an empty database and returns the component. When any
// component already exists, the first one is returned unchanged.
func (s *PostgresStore) EnsureDefaultComponent(ctx context.Context, orgName, spaceTitle, componentName string) (Component, error) {
	var existingID int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM components ORDER BY id LIMIT 1`).Scan(&existingID)
	if err == nil {
		return s.GetComponent(ctx, existingID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Component{}, fmt.Errorf("check components: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Component{}, fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var orgID int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO organizations (name) VALUES ($1) RETURNING id
	`, orgName).Scan(&orgID); err != nil {
		return Component{}, fmt.Errorf("seed organization: %w", err)
	}

	var spaceID int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO spaces (organization_id, title, slug, public)
		VALUES ($1, $2, $3, TRUE) RETURNING id
	`, orgID, spaceTitle, slugify(spaceTitle)).Scan(&spaceID); err != nil {
		return Component{}, fmt.Errorf("seed space: %w", err)
	}

	settings, err := json.Marshal(permission.DefaultSettings())
	if err != nil {
		return Component{}, fmt.Errorf("encode default settings: %w", err)
	}

	var componentID int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO components (space_id, name, published, settings)
		VALUES ($1, $2, TRUE, $3) RETURNING id
	`, spaceID, componentName, settings).Scan(&componentID); err != nil {
		return Component{}, fmt.Errorf("seed component: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Component{}, fmt.Errorf("commit seed: %w", err)
	}
	return s.GetComponent(ctx, componentID)
}

func slugify(title string) string {
	out := make([]rune, 0, len(title))
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ', r == '-', r == '_':
			out = append(out, '-')
		}
	}
	if len(out) == 0 {
		return "space"
	}
	return string(out)
}
