package store

import (
	"time"

	"agora/api/internal/lifecycle"
	"agora/api/internal/permission"
)

type User struct {
	ID             int64
	DisplayName    string
	Email          string
	Role           string
	OrganizationID int64
	CreatedAt      time.Time
}

type UserGroup struct {
	ID             int64
	Name           string
	OrganizationID int64
}

// Space is a participatory space (a process or assembly) owning components.
type Space struct {
	ID             int64
	OrganizationID int64
	Title          string
	Slug           string
	Public         bool
}

// Component is the questions component a question belongs to. Settings is
// the explicit configuration struct the permission engine consumes.
type Component struct {
	ID        int64
	SpaceID   int64
	Name      string
	Published bool
	Settings  permission.Settings
	CreatedAt time.Time

	// Joined space fields, loaded with the component.
	SpacePublic    bool
	OrganizationID int64
	OrgPrefix      string
}

type Question struct {
	ID          int64
	ComponentID int64
	Title       string
	Body        string
	State       lifecycle.State
	// Answer holds the admin answer per locale.
	Answer      map[string]string
	AnsweredAt  *time.Time
	PublishedAt *time.Time
	HiddenAt    *time.Time
	Reference   string
	CategoryID  *int64
	ScopeID     *int64
	// Position and Level are set for questions imported from a
	// participatory text.
	Position *int
	Level    string

	VoteCount        int
	EndorsementCount int
	NoteCount        int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (q Question) Published() bool { return q.PublishedAt != nil }

func (q Question) Hidden() bool { return q.HiddenAt != nil }

// Coauthorship credits a user or user group as (co)author. A row with
// neither subject is the official sentinel: the organization itself wrote
// the question.
type Coauthorship struct {
	ID          int64
	QuestionID  int64
	AuthorID    *int64
	UserGroupID *int64
	CreatedAt   time.Time
}

func (c Coauthorship) Official() bool { return c.AuthorID == nil && c.UserGroupID == nil }

type QuestionVote struct {
	ID         int64
	QuestionID int64
	AuthorID   int64
	// Temporary votes do not count toward the public total until the
	// question crosses the component's vote threshold.
	Temporary bool
	CreatedAt time.Time
}

type QuestionEndorsement struct {
	ID          int64
	QuestionID  int64
	AuthorID    int64
	UserGroupID *int64
	CreatedAt   time.Time
}

// ResourceLink records provenance between questions, e.g. a
// copied_from_component link created by fork operations.
type ResourceLink struct {
	ID     int64
	Name   string
	FromID int64
	ToID   int64
}

// Amendment links an original question to an emendation: a duplicate
// question carrying the proposed title/body.
type Amendment struct {
	ID           int64
	QuestionID   int64
	EmendationID int64
	AmenderID    int64
	State        string // evaluating, accepted, rejected, withdrawn
	CreatedAt    time.Time
	DecidedAt    *time.Time
}

type QuestionNote struct {
	ID         int64
	QuestionID int64
	AuthorID   int64
	Body       string
	CreatedAt  time.Time
}

type Report struct {
	ID         int64
	QuestionID int64
	ReporterID int64
	Reason     string
	Details    string
	CreatedAt  time.Time
}
