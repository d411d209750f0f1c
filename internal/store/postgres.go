package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agora/api/internal/lifecycle"
	"agora/api/internal/permission"
	"agora/api/internal/util"
)

var (
	// ErrDuplicateVote is returned when the (question, author) uniqueness
	// constraint fires. The precondition check in the service cannot close
	// this race, the constraint does.
	ErrDuplicateVote = errors.New("author already voted on this question")
	// ErrVoteOnRejected is returned when a vote targets a rejected
	// question. Enforced at write time, not only in the rules engine.
	ErrVoteOnRejected = errors.New("cannot vote on a rejected question")
	// ErrOrganizationMismatch is returned when the voting or endorsing
	// user belongs to a different organization than the question.
	ErrOrganizationMismatch = errors.New("author and question belong to different organizations")
	// ErrDuplicateEndorsement mirrors ErrDuplicateVote for endorsements.
	ErrDuplicateEndorsement = errors.New("already endorsed this question")
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- users ---

func (s *PostgresStore) GetUser(ctx context.Context, userID int64) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, display_name, email, role, created_at
		FROM users
		WHERE id=$1
	`, userID).Scan(&user.ID, &user.OrganizationID, &user.DisplayName, &user.Email, &user.Role, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, display_name, email, role, created_at
		FROM users
		WHERE email=$1
	`, email).Scan(&user.ID, &user.OrganizationID, &user.DisplayName, &user.Email, &user.Role, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) EnsureUser(ctx context.Context, orgID int64, displayName, email, role string) (User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (organization_id, display_name, email, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, organization_id, display_name, email, role, created_at
	`, orgID, displayName, email, role).Scan(&user.ID, &user.OrganizationID, &user.DisplayName, &user.Email, &user.Role, &user.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// --- components ---

func (s *PostgresStore) GetComponent(ctx context.Context, componentID int64) (Component, error) {
	var (
		component   Component
		rawSettings []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.space_id, c.name, c.published, c.settings, c.created_at,
			sp.public, sp.organization_id, o.ref_prefix
		FROM components c
		JOIN spaces sp ON sp.id = c.space_id
		JOIN organizations o ON o.id = sp.organization_id
		WHERE c.id=$1
	`, componentID).Scan(
		&component.ID, &component.SpaceID, &component.Name, &component.Published,
		&rawSettings, &component.CreatedAt,
		&component.SpacePublic, &component.OrganizationID, &component.OrgPrefix,
	)
	if err != nil {
		return Component{}, err
	}

	component.Settings = permission.DefaultSettings()
	if len(rawSettings) > 0 {
		if err := json.Unmarshal(rawSettings, &component.Settings); err != nil {
			return Component{}, fmt.Errorf("decode component settings: %w", err)
		}
	}
	return component, nil
}

func (s *PostgresStore) UpdateComponentSettings(ctx context.Context, componentID int64, settings permission.Settings) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode component settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE components SET settings=$2 WHERE id=$1`, componentID, payload)
	if err != nil {
		return fmt.Errorf("update component settings: %w", err)
	}
	return nil
}

// --- questions ---

const questionColumns = `
	id, component_id, title, body, state, answer, answered_at, published_at,
	hidden_at, reference, category_id, scope_id, position, level,
	vote_count, endorsement_count, note_count, created_at, updated_at
`

func scanQuestion(row interface{ Scan(...any) error }) (Question, error) {
	var (
		q         Question
		state     string
		rawAnswer []byte
	)
	err := row.Scan(
		&q.ID, &q.ComponentID, &q.Title, &q.Body, &state, &rawAnswer,
		&q.AnsweredAt, &q.PublishedAt, &q.HiddenAt, &q.Reference,
		&q.CategoryID, &q.ScopeID, &q.Position, &q.Level,
		&q.VoteCount, &q.EndorsementCount, &q.NoteCount,
		&q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return Question{}, err
	}
	q.State = lifecycle.State(state)
	if len(rawAnswer) > 0 {
		if err := json.Unmarshal(rawAnswer, &q.Answer); err != nil {
			return Question{}, fmt.Errorf("decode answer: %w", err)
		}
	}
	return q, nil
}

// InsertQuestion creates the question row together with its single initial
// coauthorship in one transaction, then assigns the reference code derived
// from the new row id.
func (s *PostgresStore) InsertQuestion(ctx context.Context, q Question, coauthor Coauthorship) (Question, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Question{}, fmt.Errorf("begin insert question: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var rawAnswer []byte
	if q.Answer != nil {
		if rawAnswer, err = json.Marshal(q.Answer); err != nil {
			return Question{}, fmt.Errorf("encode answer: %w", err)
		}
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO questions (component_id, title, body, state, answer, published_at, category_id, scope_id, position, level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`, q.ComponentID, q.Title, q.Body, string(q.State), rawAnswer, q.PublishedAt,
		q.CategoryID, q.ScopeID, q.Position, q.Level,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return Question{}, fmt.Errorf("insert question: %w", err)
	}

	var orgPrefix string
	err = tx.QueryRowContext(ctx, `
		SELECT o.ref_prefix
		FROM components c
		JOIN spaces sp ON sp.id = c.space_id
		JOIN organizations o ON o.id = sp.organization_id
		WHERE c.id=$1
	`, q.ComponentID).Scan(&orgPrefix)
	if err != nil {
		return Question{}, fmt.Errorf("read org prefix: %w", err)
	}
	q.Reference = util.RefCode(orgPrefix, q.CreatedAt, q.ID)
	if _, err := tx.ExecContext(ctx, `UPDATE questions SET reference=$2 WHERE id=$1`, q.ID, q.Reference); err != nil {
		return Question{}, fmt.Errorf("assign reference: %w", err)
	}

	coauthor.QuestionID = q.ID
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO coauthorships (question_id, author_id, user_group_id)
		VALUES ($1, $2, $3)
	`, coauthor.QuestionID, coauthor.AuthorID, coauthor.UserGroupID); err != nil {
		return Question{}, fmt.Errorf("insert coauthorship: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Question{}, fmt.Errorf("commit insert question: %w", err)
	}
	return q, nil
}

func (s *PostgresStore) GetQuestion(ctx context.Context, questionID int64) (Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id=$1`, questionID)
	return scanQuestion(row)
}

// GetMentionableQuestion resolves an id for the mention parser: only
// questions of published components under public spaces qualify, and
// hidden or unpublished questions never do.
func (s *PostgresStore) GetMentionableQuestion(ctx context.Context, questionID int64) (Question, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+qualifiedQuestionColumns("q")+`
		FROM questions q
		JOIN components c ON c.id = q.component_id
		JOIN spaces sp ON sp.id = c.space_id
		WHERE q.id=$1
			AND c.published
			AND sp.public
			AND q.published_at IS NOT NULL
			AND q.hidden_at IS NULL
	`, questionID)
	return scanQuestion(row)
}

func qualifiedQuestionColumns(alias string) string {
	return alias + `.id, ` + alias + `.component_id, ` + alias + `.title, ` + alias + `.body, ` +
		alias + `.state, ` + alias + `.answer, ` + alias + `.answered_at, ` + alias + `.published_at, ` +
		alias + `.hidden_at, ` + alias + `.reference, ` + alias + `.category_id, ` + alias + `.scope_id, ` +
		alias + `.position, ` + alias + `.level, ` + alias + `.vote_count, ` + alias + `.endorsement_count, ` +
		alias + `.note_count, ` + alias + `.created_at, ` + alias + `.updated_at`
}

// ListQuestions applies the lifecycle filter. Hidden questions are always
// excluded; withdrawn ones only appear when the filter says so.
func (s *PostgresStore) ListQuestions(ctx context.Context, componentID int64, filter lifecycle.Filter) ([]Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE component_id=$1 AND hidden_at IS NULL`
	args := []any{componentID}

	if !filter.IncludeDrafts {
		query += ` AND published_at IS NOT NULL AND state <> 'draft'`
	}
	if len(filter.States) > 0 {
		query += ` AND state = ANY($2)`
		states := make([]string, len(filter.States))
		for i, st := range filter.States {
			states[i] = string(st)
		}
		args = append(args, states)
	} else {
		if !filter.IncludeWithdrawn {
			query += ` AND state <> 'withdrawn'`
		}
		if filter.ExceptRejected {
			query += ` AND state <> 'rejected'`
		}
	}
	query += ` ORDER BY COALESCE(position, 2147483647), created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	items := make([]Question, 0)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		items = append(items, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateQuestionContent(ctx context.Context, questionID int64, title, body string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE questions SET title=$2, body=$3, updated_at=NOW() WHERE id=$1
	`, questionID, title, body)
	if err != nil {
		return fmt.Errorf("update question content: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateQuestionState(ctx context.Context, questionID int64, state lifecycle.State) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE questions SET state=$2, updated_at=NOW() WHERE id=$1
	`, questionID, string(state))
	if err != nil {
		return fmt.Errorf("update question state: %w", err)
	}
	return nil
}

// AnswerQuestion records the admin verdict: target state, per-locale
// answer text and the answered-at timestamp.
func (s *PostgresStore) AnswerQuestion(ctx context.Context, questionID int64, state lifecycle.State, answer map[string]string, answeredAt time.Time) error {
	rawAnswer, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE questions
		SET state=$2, answer=$3, answered_at=$4, updated_at=NOW()
		WHERE id=$1
	`, questionID, string(state), rawAnswer, answeredAt)
	if err != nil {
		return fmt.Errorf("answer question: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateQuestionCategory(ctx context.Context, questionID int64, categoryID *int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE questions SET category_id=$2, updated_at=NOW() WHERE id=$1
	`, questionID, categoryID)
	if err != nil {
		return fmt.Errorf("update question category: %w", err)
	}
	return nil
}

// PublishQuestion makes a draft visible: it clears the draft state and
// stamps published_at. Already-published questions are left alone.
func (s *PostgresStore) PublishQuestion(ctx context.Context, questionID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE questions
		SET state='', published_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND published_at IS NULL
	`, questionID)
	if err != nil {
		return fmt.Errorf("publish question: %w", err)
	}
	return nil
}

func (s *PostgresStore) HideQuestion(ctx context.Context, questionID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE questions SET hidden_at=NOW(), updated_at=NOW() WHERE id=$1 AND hidden_at IS NULL
	`, questionID)
	if err != nil {
		return fmt.Errorf("hide question: %w", err)
	}
	return nil
}

// --- coauthors ---

func (s *PostgresStore) ListCoauthors(ctx context.Context, questionID int64) ([]Coauthorship, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question_id, author_id, user_group_id, created_at
		FROM coauthorships
		WHERE question_id=$1
		ORDER BY id
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("list coauthors: %w", err)
	}
	defer rows.Close()

	items := make([]Coauthorship, 0)
	for rows.Next() {
		var c Coauthorship
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.AuthorID, &c.UserGroupID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan coauthorship: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coauthors: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SummaryCounts(ctx context.Context) (questions, votes, endorsements int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM questions WHERE hidden_at IS NULL),
			(SELECT count(*) FROM question_votes),
			(SELECT count(*) FROM question_endorsements)
	`).Scan(&questions, &votes, &endorsements)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("summary counts: %w", err)
	}
	return questions, votes, endorsements, nil
}
