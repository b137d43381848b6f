package search

import (
	"strings"
	"sync"
)

// MemoryIndex is the fallback searcher: a mutex-guarded substring scan over
// everything that was indexed. The authoritative registries already live in
// memory, so the fallback carries no durability expectations either.
type MemoryIndex struct {
	mu        sync.RWMutex
	comments  map[string]CommentRecord
	revisions map[string]RevisionRecord
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		comments:  make(map[string]CommentRecord),
		revisions: make(map[string]RevisionRecord),
	}
}

func (m *MemoryIndex) Healthy() bool { return true }

func (m *MemoryIndex) IndexComment(c CommentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments[c.ID] = c
	return nil
}

func (m *MemoryIndex) IndexRevision(r RevisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revisions[r.ID] = r
	return nil
}

func (m *MemoryIndex) Search(q Query) ([]Result, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(q.Text))
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}

	results := make([]Result, 0)
	if q.FilterType == "" || q.FilterType == ResultComment {
		for _, c := range m.comments {
			if q.FilterDocument != "" && c.DocumentID != q.FilterDocument {
				continue
			}
			if needle != "" && !strings.Contains(strings.ToLower(c.Content), needle) &&
				!strings.Contains(strings.ToLower(c.SectionPath), needle) {
				continue
			}
			results = append(results, Result{
				Type:        ResultComment,
				ID:          c.ID,
				DocumentID:  c.DocumentID,
				SectionPath: c.SectionPath,
				Snippet:     c.Content,
				Author:      c.Author,
			})
		}
	}
	if q.FilterType == "" || q.FilterType == ResultRevision {
		for _, r := range m.revisions {
			if q.FilterDocument != "" && r.DocumentID != q.FilterDocument {
				continue
			}
			if needle != "" && !strings.Contains(strings.ToLower(r.Reason), needle) {
				continue
			}
			results = append(results, Result{
				Type:       ResultRevision,
				ID:         r.ID,
				DocumentID: r.DocumentID,
				Snippet:    r.Reason,
				Author:     r.Author,
			})
		}
	}

	total := len(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, total, nil
}
