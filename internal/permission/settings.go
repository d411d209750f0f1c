package permission

// Settings is the component configuration consulted by the rules engine.
// It replaces the dynamic settings objects of the original platform with
// an explicit struct; the store maps the component's settings column onto
// it.
type Settings struct {
	CreationEnabled            bool `json:"creation_enabled"`
	VotesEnabled               bool `json:"votes_enabled"`
	VotesBlocked               bool `json:"votes_blocked"`
	VotesWeightEnabled         bool `json:"votes_weight_enabled"`
	EndorsementsEnabled        bool `json:"endorsements_enabled"`
	EndorsementsBlocked        bool `json:"endorsements_blocked"`
	CollaborativeDraftsEnabled bool `json:"collaborative_drafts_enabled"`
	ParticipatoryTextsEnabled  bool `json:"participatory_texts_enabled"`
	AmendmentsEnabled          bool `json:"amendments_enabled"`
	// AnswersWithCosts tells hosts that answers in this component carry a
	// cost breakdown; the engine itself does not branch on it.
	AnswersWithCosts bool `json:"answers_with_costs"`

	// VoteLimit caps an actor's votes across the component's questions.
	// Zero or negative means unlimited.
	VoteLimit int `json:"vote_limit"`
	// VoteThreshold is the minimum total votes a question needs before
	// temporary votes start counting toward the public total. Zero
	// disables the gate.
	VoteThreshold int `json:"vote_threshold"`

	// Field constraints applied when creating or editing questions.
	TitleMaxLength int `json:"title_max_length"`
	BodyMaxLength  int `json:"body_max_length"`
	// ForbiddenWords are rejected wherever they appear in a title or
	// body, matched case-insensitively.
	ForbiddenWords []string `json:"forbidden_words"`
}

// DefaultSettings mirror a freshly created component.
func DefaultSettings() Settings {
	return Settings{
		CreationEnabled:     true,
		VotesEnabled:        true,
		EndorsementsEnabled: true,
		TitleMaxLength:      150,
		BodyMaxLength:       5000,
	}
}
