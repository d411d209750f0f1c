package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// InsertVote casts a vote inside one transaction: it verifies the
// organization match and the rejection lock against the current row, lets
// the unique constraint close the double-vote race, and maintains the
// public counter. Temporary votes are stored but not counted until
// ConfirmTemporaryVotes flips them.
func (s *PostgresStore) InsertVote(ctx context.Context, questionID, authorID int64, temporary bool) (QuestionVote, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return QuestionVote{}, fmt.Errorf("begin vote: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var state string
	var sameOrg bool
	err = tx.QueryRowContext(ctx, `
		SELECT q.state, sp.organization_id = u.organization_id
		FROM questions q
		JOIN components c ON c.id = q.component_id
		JOIN spaces sp ON sp.id = c.space_id
		JOIN users u ON u.id = $2
		WHERE q.id=$1
	`, questionID, authorID).Scan(&state, &sameOrg)
	if err != nil {
		return QuestionVote{}, fmt.Errorf("load vote target: %w", err)
	}
	if state == "rejected" {
		return QuestionVote{}, ErrVoteOnRejected
	}
	if !sameOrg {
		return QuestionVote{}, ErrOrganizationMismatch
	}

	var vote QuestionVote
	err = tx.QueryRowContext(ctx, `
		INSERT INTO question_votes (question_id, author_id, temporary)
		VALUES ($1, $2, $3)
		RETURNING id, question_id, author_id, temporary, created_at
	`, questionID, authorID, temporary).Scan(&vote.ID, &vote.QuestionID, &vote.AuthorID, &vote.Temporary, &vote.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return QuestionVote{}, ErrDuplicateVote
		}
		return QuestionVote{}, fmt.Errorf("insert vote: %w", err)
	}

	if !temporary {
		if _, err := tx.ExecContext(ctx, `
			UPDATE questions SET vote_count = vote_count + 1 WHERE id=$1
		`, questionID); err != nil {
			return QuestionVote{}, fmt.Errorf("bump vote count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return QuestionVote{}, fmt.Errorf("commit vote: %w", err)
	}
	return vote, nil
}

func (s *PostgresStore) DeleteVote(ctx context.Context, questionID, authorID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unvote: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var temporary bool
	err = tx.QueryRowContext(ctx, `
		DELETE FROM question_votes WHERE question_id=$1 AND author_id=$2
		RETURNING temporary
	`, questionID, authorID).Scan(&temporary)
	if err != nil {
		return fmt.Errorf("delete vote: %w", err)
	}

	if !temporary {
		if _, err := tx.ExecContext(ctx, `
			UPDATE questions SET vote_count = vote_count - 1 WHERE id=$1 AND vote_count > 0
		`, questionID); err != nil {
			return fmt.Errorf("drop vote count: %w", err)
		}
	}
	return tx.Commit()
}

// CountAuthorVotesInComponent counts the actor's votes across every
// question of a component. Feeds the vote-limit rule.
func (s *PostgresStore) CountAuthorVotesInComponent(ctx context.Context, componentID, authorID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM question_votes v
		JOIN questions q ON q.id = v.question_id
		WHERE q.component_id=$1 AND v.author_id=$2
	`, componentID, authorID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count author votes: %w", err)
	}
	return count, nil
}

// TotalVotes counts every vote on the question, temporary ones included.
// Compared against the component's vote threshold.
func (s *PostgresStore) TotalVotes(ctx context.Context, questionID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM question_votes WHERE question_id=$1
	`, questionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}
	return count, nil
}

// ConfirmTemporaryVotes flips every temporary vote on the question to
// counted and folds them into the public total. Called once the question
// crosses the vote threshold.
func (s *PostgresStore) ConfirmTemporaryVotes(ctx context.Context, questionID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin confirm votes: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE question_votes SET temporary=FALSE WHERE question_id=$1 AND temporary
	`, questionID)
	if err != nil {
		return fmt.Errorf("confirm temporary votes: %w", err)
	}
	flipped, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("confirmed vote count: %w", err)
	}
	if flipped > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE questions SET vote_count = vote_count + $2 WHERE id=$1
		`, questionID, flipped); err != nil {
			return fmt.Errorf("fold confirmed votes: %w", err)
		}
	}
	return tx.Commit()
}

// --- endorsements ---

func (s *PostgresStore) InsertEndorsement(ctx context.Context, questionID, authorID int64, userGroupID *int64) (QuestionEndorsement, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return QuestionEndorsement{}, fmt.Errorf("begin endorsement: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var sameOrg bool
	err = tx.QueryRowContext(ctx, `
		SELECT sp.organization_id = u.organization_id
		FROM questions q
		JOIN components c ON c.id = q.component_id
		JOIN spaces sp ON sp.id = c.space_id
		JOIN users u ON u.id = $2
		WHERE q.id=$1
	`, questionID, authorID).Scan(&sameOrg)
	if err != nil {
		return QuestionEndorsement{}, fmt.Errorf("load endorsement target: %w", err)
	}
	if !sameOrg {
		return QuestionEndorsement{}, ErrOrganizationMismatch
	}

	var endorsement QuestionEndorsement
	err = tx.QueryRowContext(ctx, `
		INSERT INTO question_endorsements (question_id, author_id, user_group_id)
		VALUES ($1, $2, $3)
		RETURNING id, question_id, author_id, user_group_id, created_at
	`, questionID, authorID, userGroupID).Scan(
		&endorsement.ID, &endorsement.QuestionID, &endorsement.AuthorID,
		&endorsement.UserGroupID, &endorsement.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return QuestionEndorsement{}, ErrDuplicateEndorsement
		}
		return QuestionEndorsement{}, fmt.Errorf("insert endorsement: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE questions SET endorsement_count = endorsement_count + 1 WHERE id=$1
	`, questionID); err != nil {
		return QuestionEndorsement{}, fmt.Errorf("bump endorsement count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return QuestionEndorsement{}, fmt.Errorf("commit endorsement: %w", err)
	}
	return endorsement, nil
}

func (s *PostgresStore) DeleteEndorsement(ctx context.Context, questionID, authorID int64, userGroupID *int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unendorse: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `DELETE FROM question_endorsements WHERE question_id=$1 AND author_id=$2 AND user_group_id IS NOT DISTINCT FROM $3`
	result, err := tx.ExecContext(ctx, query, questionID, authorID, userGroupID)
	if err != nil {
		return fmt.Errorf("delete endorsement: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleted endorsement count: %w", err)
	}
	if removed > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE questions SET endorsement_count = endorsement_count - 1 WHERE id=$1 AND endorsement_count > 0
		`, questionID); err != nil {
			return fmt.Errorf("drop endorsement count: %w", err)
		}
	}
	return tx.Commit()
}

// --- reports and notes ---

func (s *PostgresStore) InsertReport(ctx context.Context, report Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (question_id, reporter_id, reason, details)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (question_id, reporter_id) DO NOTHING
	`, report.QuestionID, report.ReporterID, report.Reason, report.Details)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountReports(ctx context.Context, questionID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM reports WHERE question_id=$1
	`, questionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) InsertNote(ctx context.Context, note QuestionNote) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin note: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO question_notes (question_id, author_id, body)
		VALUES ($1, $2, $3)
	`, note.QuestionID, note.AuthorID, note.Body); err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE questions SET note_count = note_count + 1 WHERE id=$1
	`, note.QuestionID); err != nil {
		return fmt.Errorf("bump note count: %w", err)
	}
	return tx.Commit()
}

func (s *PostgresStore) ListNotes(ctx context.Context, questionID int64) ([]QuestionNote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question_id, author_id, body, created_at
		FROM question_notes
		WHERE question_id=$1
		ORDER BY created_at DESC, id DESC
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []QuestionNote
	for rows.Next() {
		var n QuestionNote
		if err := rows.Scan(&n.ID, &n.QuestionID, &n.AuthorID, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
