// Package search indexes comments and revisions for full-text lookup.
// Meilisearch is preferred when configured and reachable; an in-memory
// scan serves as the fallback so search keeps working without it.
package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultComment  ResultType = "comment"
	ResultRevision ResultType = "revision"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type        ResultType `json:"type"`
	ID          string     `json:"id"`
	DocumentID  string     `json:"documentId"`
	SectionPath string     `json:"sectionPath,omitempty"`
	Snippet     string     `json:"snippet"`
	Author      string     `json:"author,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text           string
	FilterType     ResultType // empty = all types
	FilterDocument string
	Limit          int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// CommentRecord is the data we index for a comment.
type CommentRecord struct {
	ID          string `json:"id"`
	DocumentID  string `json:"documentId"`
	VersionID   string `json:"versionId"`
	SectionPath string `json:"sectionPath"`
	Content     string `json:"content"`
	Author      string `json:"author"`
}

// RevisionRecord is the data we index for a revision.
type RevisionRecord struct {
	ID         string `json:"id"`
	DocumentID string `json:"documentId"`
	Reason     string `json:"reason"`
	Status     string `json:"status"`
	Author     string `json:"author"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexComment(c CommentRecord) error
	IndexRevision(r RevisionRecord) error
}
