package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Snippet     string `json:"snippet"`
	ComponentID int64  `json:"componentId"`
	State       string `json:"state"`
	Reference   string `json:"reference,omitempty"`
}

// Query describes a search request. Withdrawn questions are excluded unless
// IncludeWithdrawn is set.
type Query struct {
	Text             string
	ComponentID      int64 // 0 = all components
	State            string
	CategoryID       int64
	IncludeWithdrawn bool
	Limit            int
	Offset           int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push questions into a search index.
type Indexer interface {
	IndexQuestion(q QuestionRecord) error
	DeleteQuestion(id int64) error
}

// QuestionRecord is the data we index for a question.
type QuestionRecord struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Answer      string `json:"answer"`
	ComponentID int64  `json:"componentId"`
	CategoryID  int64  `json:"categoryId"`
	State       string `json:"state"`
	Reference   string `json:"reference"`
}
