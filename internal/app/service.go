package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"agora/api/internal/config"
	"agora/api/internal/export"
	"agora/api/internal/lifecycle"
	"agora/api/internal/mentions"
	"agora/api/internal/notify"
	"agora/api/internal/permission"
	"agora/api/internal/revision"
	"agora/api/internal/search"
	"agora/api/internal/store"
)

// Identity is the caller as resolved from the trusted gateway header. A
// zero UserID means an anonymous visitor.
type Identity struct {
	UserID         int64
	Name           string
	Email          string
	Role           string
	OrganizationID int64
	GroupIDs       []int64
}

func (i Identity) Anonymous() bool { return i.UserID == 0 }

func (i Identity) actor() permission.Actor {
	return permission.Actor{ID: i.UserID, Role: i.Role, GroupIDs: i.GroupIDs}
}

type CreateQuestionInput struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Official bool   `json:"official"`
	Draft    bool   `json:"draft"`
}

type EditQuestionInput struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type AnswerInput struct {
	State  string            `json:"state"`
	Answer map[string]string `json:"answer"`
}

type ListFilterInput struct {
	States           []string
	IncludeWithdrawn bool
	ExceptRejected   bool
	IncludeDrafts    bool
}

type dataStore interface {
	Ping(context.Context) error
	GetUser(context.Context, int64) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	EnsureUser(context.Context, int64, string, string, string) (store.User, error)
	GetComponent(context.Context, int64) (store.Component, error)
	UpdateComponentSettings(context.Context, int64, permission.Settings) error
	EnsureDefaultComponent(context.Context, string, string, string) (store.Component, error)

	InsertQuestion(context.Context, store.Question, store.Coauthorship) (store.Question, error)
	GetQuestion(context.Context, int64) (store.Question, error)
	GetMentionableQuestion(context.Context, int64) (store.Question, error)
	ListQuestions(context.Context, int64, lifecycle.Filter) ([]store.Question, error)
	UpdateQuestionContent(context.Context, int64, string, string) error
	UpdateQuestionState(context.Context, int64, lifecycle.State) error
	AnswerQuestion(context.Context, int64, lifecycle.State, map[string]string, time.Time) error
	UpdateQuestionCategory(context.Context, int64, *int64) error
	PublishQuestion(context.Context, int64) error
	HideQuestion(context.Context, int64) error
	ListCoauthors(context.Context, int64) ([]store.Coauthorship, error)
	SummaryCounts(context.Context) (int, int, int, error)

	InsertVote(context.Context, int64, int64, bool) (store.QuestionVote, error)
	DeleteVote(context.Context, int64, int64) error
	CountAuthorVotesInComponent(context.Context, int64, int64) (int, error)
	TotalVotes(context.Context, int64) (int, error)
	ConfirmTemporaryVotes(context.Context, int64) error
	InsertEndorsement(context.Context, int64, int64, *int64) (store.QuestionEndorsement, error)
	DeleteEndorsement(context.Context, int64, int64, *int64) error
	InsertReport(context.Context, store.Report) error
	CountReports(context.Context, int64) (int, error)
	InsertNote(context.Context, store.QuestionNote) error
	ListNotes(context.Context, int64) ([]store.QuestionNote, error)

	InsertResourceLink(context.Context, store.ResourceLink) (store.ResourceLink, error)
	ListResourceLinks(context.Context, string, int64) ([]store.ResourceLink, error)
	InsertAmendment(context.Context, store.Amendment) (store.Amendment, error)
	GetAmendment(context.Context, int64) (store.Amendment, error)
	UpdateAmendmentState(context.Context, int64, string, time.Time) error
	ListAmendments(context.Context, int64) ([]store.Amendment, error)
}

type revisionService interface {
	EnsureQuestionRepo(int64, revision.Content, string) error
	EnsureBranch(int64, string, string) error
	CommitContent(int64, string, revision.Content, string, string) (revision.CommitInfo, error)
	History(int64, string, int) ([]revision.CommitInfo, error)
	MergeIntoMain(int64, string, string, string) (revision.CommitInfo, error)
}

type eventPublisher interface {
	Publish(context.Context, notify.Event) error
	PublishMention(context.Context, string, int64, []int64) (bool, error)
}

type searchService interface {
	Search(search.Query) search.Response
	IndexQuestion(search.QuestionRecord)
	DeleteQuestion(int64)
}

type mailer interface {
	IsConfigured() bool
	SendAnsweredEmail(to, userName, questionTitle, answer, questionURL string) error
	SendMentionedEmail(to, userName, questionTitle, mentioningFrom, questionURL string) error
}

type exporter interface {
	Export(context.Context, export.Request) (*export.Result, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	revisions revisionService
	events    eventPublisher
	search    searchService
	email     mailer
	exporter  exporter
	engine    permission.Chain
}

// NewService wires the question service. The store and revision service
// are required; events, search and mail may be nil, and the service
// degrades to skipping them.
func NewService(
	cfg config.Config,
	dataStore dataStore,
	revisions revisionService,
	events eventPublisher,
	searchSvc searchService,
	mail mailer,
	exportSvc exporter,
) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		revisions: revisions,
		events:    events,
		search:    searchSvc,
		email:     mail,
		exporter:  exportSvc,
		engine: permission.Chain{
			&permission.QuestionEngine{
				Admin:      permission.AdminEngine{},
				Authorizer: permission.AllowAll{},
				EditWindow: cfg.EditWindow,
			},
		},
	}
}

// Bootstrap seeds a default organization, space and component on first run.
func (s *Service) Bootstrap(ctx context.Context) error {
	component, err := s.store.EnsureDefaultComponent(ctx, "Agora", "Open Questions", "Questions")
	if err != nil {
		return fmt.Errorf("bootstrap component: %w", err)
	}
	log.Printf("app: default component %d (%s) ready", component.ID, component.Name)
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// IdentityFromEmail resolves the gateway-auth header into an Identity.
func (s *Service) IdentityFromEmail(ctx context.Context, email string) (Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return Identity{}, nil
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return Identity{}, fmt.Errorf("resolve identity: %w", err)
	}
	return Identity{
		UserID:         user.ID,
		Name:           user.DisplayName,
		Email:          user.Email,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
	}, nil
}

// decide runs the permission chain. An exhausted chain denies.
func (s *Service) decide(req permission.Request) error {
	if s.engine.Decide(req) != permission.Allow {
		return errForbidden()
	}
	return nil
}

// target snapshots the question for a permission request.
func (s *Service) target(ctx context.Context, q store.Question) (*permission.Target, error) {
	coauthors, err := s.store.ListCoauthors(ctx, q.ID)
	if err != nil {
		return nil, fmt.Errorf("load coauthors: %w", err)
	}
	target := &permission.Target{
		ID:               q.ID,
		State:            q.State,
		CreatedAt:        q.CreatedAt,
		VoteCount:        q.VoteCount,
		EndorsementCount: q.EndorsementCount,
	}
	for _, c := range coauthors {
		if c.Official() {
			target.Official = true
		}
		if c.AuthorID != nil {
			target.AuthorIDs = append(target.AuthorIDs, *c.AuthorID)
		}
	}
	return target, nil
}

func (s *Service) authorIDs(ctx context.Context, questionID int64) []int64 {
	coauthors, err := s.store.ListCoauthors(ctx, questionID)
	if err != nil {
		log.Printf("app: load coauthors for %d: %v", questionID, err)
		return nil
	}
	ids := make([]int64, 0, len(coauthors))
	for _, c := range coauthors {
		if c.AuthorID != nil {
			ids = append(ids, *c.AuthorID)
		}
	}
	return ids
}

// parseResolver only resolves questions visible to everyone: published
// components in public spaces.
func (s *Service) parseResolver(ctx context.Context) mentions.Resolver {
	return mentions.ResolverFunc(func(id int64) (mentions.Question, bool) {
		q, err := s.store.GetMentionableQuestion(ctx, id)
		if err != nil {
			return mentions.Question{}, false
		}
		return mentions.Question{ID: q.ID, Title: q.Title, Path: questionPath(q)}, true
	})
}

// renderResolver is unscoped so old mentions keep rendering after the
// mentioned question moves or loses visibility.
func (s *Service) renderResolver(ctx context.Context) mentions.Resolver {
	return mentions.ResolverFunc(func(id int64) (mentions.Question, bool) {
		q, err := s.store.GetQuestion(ctx, id)
		if err != nil {
			return mentions.Question{}, false
		}
		return mentions.Question{ID: q.ID, Title: q.Title, Path: questionPath(q)}, true
	})
}

func questionPath(q store.Question) string {
	return fmt.Sprintf("/components/%d/questions/%d", q.ComponentID, q.ID)
}

func (s *Service) validateContent(settings permission.Settings, title, body string) error {
	details := map[string]string{}
	if strings.TrimSpace(title) == "" {
		details["title"] = "title is required"
	} else if settings.TitleMaxLength > 0 && len([]rune(title)) > settings.TitleMaxLength {
		details["title"] = fmt.Sprintf("title exceeds %d characters", settings.TitleMaxLength)
	}
	if strings.TrimSpace(body) == "" {
		details["body"] = "body is required"
	} else if settings.BodyMaxLength > 0 && len([]rune(body)) > settings.BodyMaxLength {
		details["body"] = fmt.Sprintf("body exceeds %d characters", settings.BodyMaxLength)
	}
	if word := firstForbiddenWord(settings, title, body); word != "" {
		details["body"] = fmt.Sprintf("contains the forbidden word %q", word)
	}
	if len(details) > 0 {
		return errValidation("invalid question content", details)
	}
	return nil
}

func firstForbiddenWord(settings permission.Settings, title, body string) string {
	if len(settings.ForbiddenWords) == 0 {
		return ""
	}
	haystack := strings.ToLower(title + " " + body)
	for _, word := range settings.ForbiddenWords {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" && strings.Contains(haystack, word) {
			return word
		}
	}
	return ""
}

// CreateQuestion validates, rewrites mentions, persists the question with
// its initial coauthorship, starts its revision history and fans out
// mention notifications.
func (s *Service) CreateQuestion(ctx context.Context, identity Identity, componentID int64, input CreateQuestionInput) (map[string]any, error) {
	component, err := s.store.GetComponent(ctx, componentID)
	if err != nil {
		return nil, err
	}

	scope := permission.ScopePublic
	if input.Official {
		scope = permission.ScopeAdmin
	}
	if err := s.decide(permission.Request{
		Actor:    identity.actor(),
		Scope:    scope,
		Action:   "create",
		Subject:  permission.SubjectQuestion,
		Settings: component.Settings,
	}); err != nil {
		return nil, err
	}
	if identity.Anonymous() {
		return nil, errForbidden()
	}

	if err := s.validateContent(component.Settings, input.Title, input.Body); err != nil {
		return nil, err
	}

	body := input.Body
	var meta mentions.Metadata
	if mentions.HasMentionMarkers(body) {
		body, meta = mentions.Parse(body, s.parseResolver(ctx))
	}

	q := store.Question{
		ComponentID: componentID,
		Title:       strings.TrimSpace(input.Title),
		Body:        body,
	}
	if input.Draft {
		q.State = lifecycle.StateDraft
	} else {
		now := time.Now()
		q.PublishedAt = &now
	}

	coauthor := store.Coauthorship{}
	if !input.Official {
		authorID := identity.UserID
		coauthor.AuthorID = &authorID
	}

	created, err := s.store.InsertQuestion(ctx, q, coauthor)
	if err != nil {
		return nil, fmt.Errorf("insert question: %w", err)
	}

	if err := s.revisions.EnsureQuestionRepo(created.ID, revision.Content{Title: created.Title, Body: created.Body}, identity.Name); err != nil {
		log.Printf("app: init revision repo for %d: %v", created.ID, err)
	}

	changeID := fmt.Sprintf("question-%d-created", created.ID)
	s.notifyMentions(ctx, changeID, created.Title, meta)
	s.indexQuestion(created)

	return s.questionPayload(ctx, created), nil
}

// ListQuestions returns the component's questions through the lifecycle
// filter, with mention tokens rendered for display. Drafts are only
// listed for component admins.
func (s *Service) ListQuestions(ctx context.Context, identity Identity, componentID int64, input ListFilterInput) (map[string]any, error) {
	if _, err := s.store.GetComponent(ctx, componentID); err != nil {
		return nil, err
	}

	filter := lifecycle.Filter{
		IncludeWithdrawn: input.IncludeWithdrawn,
		ExceptRejected:   input.ExceptRejected,
		IncludeDrafts:    input.IncludeDrafts && identity.actor().Admin(),
	}
	for _, raw := range input.States {
		state := lifecycle.State(raw)
		if !lifecycle.Valid(state) {
			return nil, errValidation(fmt.Sprintf("unknown state %q", raw), nil)
		}
		filter.States = append(filter.States, state)
	}

	questions, err := s.store.ListQuestions(ctx, componentID, filter)
	if err != nil {
		return nil, err
	}

	resolver := s.renderResolver(ctx)
	items := make([]map[string]any, 0, len(questions))
	for _, q := range questions {
		payload := s.questionSummary(q)
		payload["body"] = mentions.Render(q.Body, resolver)
		items = append(items, payload)
	}
	return map[string]any{"questions": items}, nil
}

// GetQuestion returns one question with rendered mentions and authors.
// Hidden questions stay invisible; unpublished ones are only visible to
// their authors and to admins.
func (s *Service) GetQuestion(ctx context.Context, identity Identity, questionID int64) (map[string]any, error) {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if q.Hidden() {
		return nil, errNotFound("Question not found")
	}
	if !q.Published() && !s.canSeeUnpublished(ctx, identity, q.ID) {
		return nil, errNotFound("Question not found")
	}
	payload := s.questionPayload(ctx, q)
	payload["body"] = mentions.Render(q.Body, s.renderResolver(ctx))
	return payload, nil
}

func (s *Service) canSeeUnpublished(ctx context.Context, identity Identity, questionID int64) bool {
	if identity.actor().Admin() {
		return true
	}
	if identity.Anonymous() {
		return false
	}
	for _, authorID := range s.authorIDs(ctx, questionID) {
		if authorID == identity.UserID {
			return true
		}
	}
	return false
}

// EditQuestion applies the permission engine's edit rule: official
// questions until first engagement, citizen questions by authors inside
// the edit window.
func (s *Service) EditQuestion(ctx context.Context, identity Identity, questionID int64, input EditQuestionInput) (map[string]any, error) {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	component, err := s.store.GetComponent(ctx, q.ComponentID)
	if err != nil {
		return nil, err
	}
	target, err := s.target(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := s.decide(permission.Request{
		Actor:    identity.actor(),
		Scope:    permission.ScopePublic,
		Action:   "edit",
		Subject:  permission.SubjectQuestion,
		Target:   target,
		Settings: component.Settings,
	}); err != nil {
		return nil, err
	}
	if err := s.validateContent(component.Settings, input.Title, input.Body); err != nil {
		return nil, err
	}

	body := input.Body
	var meta mentions.Metadata
	if mentions.HasMentionMarkers(body) {
		body, meta = mentions.Parse(body, s.parseResolver(ctx))
	}
	title := strings.TrimSpace(input.Title)

	if err := s.store.UpdateQuestionContent(ctx, questionID, title, body); err != nil {
		return nil, err
	}

	changeID := fmt.Sprintf("question-%d-edited", questionID)
	commit, err := s.revisions.CommitContent(questionID, "main", revision.Content{Title: title, Body: body}, identity.Name, "Edit question")
	if err != nil {
		log.Printf("app: commit edit for %d: %v", questionID, err)
	} else {
		// The commit hash identifies this content change, so retries of
		// the same edit do not refan mention notifications.
		changeID = commit.Hash
	}
	s.notifyMentions(ctx, changeID, title, meta)

	q, err = s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	s.indexQuestion(q)
	return s.questionPayload(ctx, q), nil
}

// WithdrawQuestion lets an author retract a question that has not received
// a final answer.
func (s *Service) WithdrawQuestion(ctx context.Context, identity Identity, questionID int64) (map[string]any, error) {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	target, err := s.target(ctx, q)
	if err != nil {
		return nil, err
	}
	component, err := s.store.GetComponent(ctx, q.ComponentID)
	if err != nil {
		return nil, err
	}
	if err := s.decide(permission.Request{
		Actor:    identity.actor(),
		Scope:    permission.ScopePublic,
		Action:   "withdraw",
		Subject:  permission.SubjectQuestion,
		Target:   target,
		Settings: component.Settings,
	}); err != nil {
		return nil, err
	}
	if !lifecycle.CanWithdraw(q.State) {
		return nil, errValidation(fmt.Sprintf("cannot withdraw a question in state %q", displayState(q.State)), nil)
	}
	if err := s.store.UpdateQuestionState(ctx, questionID, lifecycle.StateWithdrawn); err != nil {
		return nil, err
	}
	q.State = lifecycle.StateWithdrawn
	s.indexQuestion(q)
	return s.questionPayload(ctx, q), nil
}

// AnswerQuestion records the admin verdict and notifies the authors.
func (s *Service) AnswerQuestion(ctx context.Context, identity Identity, questionID int64, input AnswerInput) (map[string]any, error) {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	component, err := s.store.GetComponent(ctx, q.ComponentID)
	if err != nil {
		return nil, err
	}
	if err := s.decide(permission.Request{
		Actor:    identity.actor(),
		Scope:    permission.ScopeAdmin,
		Action:   "answer",
		Subject:  permission.SubjectQuestion,
		Settings: component.Settings,
	}); err != nil {
		return nil, err
	}

	state := lifecycle.State(input.State)
	if !lifecycle.CanTransition(q.State, state) {
		return nil, errValidation(
			fmt.Sprintf("cannot move question from %q to %q", displayState(q.State), displayState(state)),
			nil,
		)
	}
	if lifecycle.Final(state) && len(input.Answer) == 0 {
		return nil, errValidation("a final state requires an answer text", nil)
	}

	if err := s.store.AnswerQuestion(ctx, questionID, state, input.Answer, time.Now()); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, notify.Event{
		Kind:       answerEventKind(state),
		QuestionID: questionID,
		Recipients: s.authorIDs(ctx, questionID),
	})
	s.emailAuthors(ctx, q, input.Answer)

	q, err = s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	s.indexQuestion(q)
	return s.questionPayload(ctx, q), nil
}

func answerEventKind(state lifecycle.State) string {
	switch state {
	case lifecycle.StateAccepted:
		return notify.KindQuestionAccepted
	case lifecycle.StateRejected:
		return notify.KindQuestionRejected
	default:
		return notify.KindQuestionEvaluating
	}
}

// History lists the question's revision log, newest first.
func (s *Service) History(ctx context.Context, questionID int64) (map[string]any, error) {
	if _, err := s.store.GetQuestion(ctx, questionID); err != nil {
		return nil, err
	}
	commits, err := s.revisions.History(questionID, "main", 50)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return map[string]any{"history": commits}, nil
}

// Search proxies to the search facade.
func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{}
	}
	return s.search.Search(q)
}

// Export produces the CSV or PDF snapshot of a component.
func (s *Service) Export(ctx context.Context, identity Identity, componentID int64, format string, includeWithdrawn bool) (*export.Result, error) {
	component, err := s.store.GetComponent(ctx, componentID)
	if err != nil {
		return nil, err
	}
	if err := s.decide(permission.Request{
		Actor:    identity.actor(),
		Scope:    permission.ScopeAdmin,
		Action:   "export",
		Subject:  permission.SubjectQuestion,
		Settings: component.Settings,
	}); err != nil {
		return nil, err
	}
	return s.exporter.Export(ctx, export.Request{
		ComponentID:      componentID,
		Format:           export.Format(format),
		IncludeWithdrawn: includeWithdrawn,
	})
}

// ComponentSettings returns the component with its settings.
func (s *Service) ComponentSettings(ctx context.Context, componentID int64) (map[string]any, error) {
	component, err := s.store.GetComponent(ctx, componentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":        component.ID,
		"name":      component.Name,
		"published": component.Published,
		"settings":  component.Settings,
	}, nil
}

// UpdateComponentSettings replaces the component configuration.
func (s *Service) UpdateComponentSettings(ctx context.Context, identity Identity, componentID int64, settings permission.Settings) (map[string]any, error) {
	component, err := s.store.GetComponent(ctx, componentID)
	if err != nil {
		return nil, err
	}
	if err := s.decide(permission.Request{
		Actor:    identity.actor(),
		Scope:    permission.ScopeAdmin,
		Action:   "update_settings",
		Subject:  permission.SubjectQuestion,
		Settings: component.Settings,
	}); err != nil {
		return nil, err
	}
	if err := s.store.UpdateComponentSettings(ctx, componentID, settings); err != nil {
		return nil, err
	}
	return map[string]any{"id": componentID, "settings": settings}, nil
}

// Summary reports platform-wide counters.
func (s *Service) Summary(ctx context.Context) (map[string]any, error) {
	questions, votes, endorsements, err := s.store.SummaryCounts(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"questions":    questions,
		"votes":        votes,
		"endorsements": endorsements,
	}, nil
}

func (s *Service) notifyMentions(ctx context.Context, changeID, fromTitle string, meta mentions.Metadata) {
	if s.events == nil {
		return
	}
	for _, mentionedID := range meta.MentionedIDs {
		recipients := s.authorIDs(ctx, mentionedID)
		published, err := s.events.PublishMention(ctx, changeID, mentionedID, recipients)
		if err != nil {
			log.Printf("app: publish mention %s/%d: %v", changeID, mentionedID, err)
			continue
		}
		if published {
			s.emailMentioned(ctx, mentionedID, fromTitle, recipients)
		}
	}
}

// emailMentioned mails the mentioned question's authors. The dedup guard
// in the publisher already ran, so a repeated parse of the same change
// never reaches this.
func (s *Service) emailMentioned(ctx context.Context, mentionedID int64, fromTitle string, recipients []int64) {
	if s.email == nil || !s.email.IsConfigured() {
		return
	}
	mentioned, err := s.store.GetQuestion(ctx, mentionedID)
	if err != nil {
		return
	}
	url := s.cfg.BaseURL + questionPath(mentioned)
	for _, userID := range recipients {
		user, err := s.store.GetUser(ctx, userID)
		if err != nil {
			continue
		}
		if err := s.email.SendMentionedEmail(user.Email, user.DisplayName, mentioned.Title, fromTitle, url); err != nil {
			log.Printf("app: mentioned email to %s: %v", user.Email, err)
		}
	}
}

func (s *Service) publishEvent(ctx context.Context, event notify.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		log.Printf("app: publish %s for %d: %v", event.Kind, event.QuestionID, err)
	}
}

func (s *Service) emailAuthors(ctx context.Context, q store.Question, answer map[string]string) {
	if s.email == nil || !s.email.IsConfigured() {
		return
	}
	text := answer["en"]
	if text == "" {
		for _, v := range answer {
			text = v
			break
		}
	}
	url := s.cfg.BaseURL + questionPath(q)
	for _, authorID := range s.authorIDs(ctx, q.ID) {
		user, err := s.store.GetUser(ctx, authorID)
		if err != nil {
			continue
		}
		if err := s.email.SendAnsweredEmail(user.Email, user.DisplayName, q.Title, text, url); err != nil {
			log.Printf("app: answered email to %s: %v", user.Email, err)
		}
	}
}

func (s *Service) indexQuestion(q store.Question) {
	if s.search == nil {
		return
	}
	if q.Hidden() || !q.Published() {
		s.search.DeleteQuestion(q.ID)
		return
	}
	record := search.QuestionRecord{
		ID:          q.ID,
		Title:       q.Title,
		Body:        q.Body,
		ComponentID: q.ComponentID,
		State:       string(q.State),
		Reference:   q.Reference,
	}
	if q.CategoryID != nil {
		record.CategoryID = *q.CategoryID
	}
	if q.Answer != nil {
		record.Answer = q.Answer["en"]
	}
	s.search.IndexQuestion(record)
}

func displayState(state lifecycle.State) string {
	if state == lifecycle.StatePending {
		return "pending"
	}
	return string(state)
}

func (s *Service) questionSummary(q store.Question) map[string]any {
	payload := map[string]any{
		"id":               q.ID,
		"componentId":      q.ComponentID,
		"title":            q.Title,
		"body":             q.Body,
		"state":            displayState(q.State),
		"reference":        q.Reference,
		"voteCount":        q.VoteCount,
		"endorsementCount": q.EndorsementCount,
		"createdAt":        q.CreatedAt,
		"updatedAt":        q.UpdatedAt,
		"published":        q.Published(),
	}
	if q.Answer != nil {
		payload["answer"] = q.Answer
		payload["answeredAt"] = q.AnsweredAt
	}
	if q.CategoryID != nil {
		payload["categoryId"] = *q.CategoryID
	}
	if q.Position != nil {
		payload["position"] = *q.Position
	}
	if q.Level != "" {
		payload["level"] = q.Level
	}
	return payload
}

func (s *Service) questionPayload(ctx context.Context, q store.Question) map[string]any {
	payload := s.questionSummary(q)

	coauthors, err := s.store.ListCoauthors(ctx, q.ID)
	if err != nil {
		return payload
	}
	authors := make([]map[string]any, 0, len(coauthors))
	for _, c := range coauthors {
		switch {
		case c.Official():
			authors = append(authors, map[string]any{"official": true})
		case c.AuthorID != nil:
			entry := map[string]any{"userId": *c.AuthorID}
			if user, err := s.store.GetUser(ctx, *c.AuthorID); err == nil {
				entry["name"] = user.DisplayName
			}
			authors = append(authors, entry)
		case c.UserGroupID != nil:
			authors = append(authors, map[string]any{"userGroupId": *c.UserGroupID})
		}
	}
	payload["authors"] = authors
	return payload
}
