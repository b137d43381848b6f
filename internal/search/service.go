package search

import "github.com/rs/zerolog"

// Service is the facade that tries Meilisearch first and falls back to the
// in-memory index. Both sides are fed on every write so the fallback is
// always warm.
type Service struct {
	meili  *Meili
	memory *MemoryIndex
	log    zerolog.Logger
}

// NewService creates a search service. meili may be nil when Meilisearch is
// not configured.
func NewService(meili *Meili, logger zerolog.Logger) *Service {
	return &Service{meili: meili, memory: NewMemoryIndex(), log: logger}
}

// Search tries Meilisearch if healthy, otherwise the in-memory index.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.log.Warn().Err(err).Msg("search: meilisearch error, falling back to memory index")
	}

	results, total, err := s.memory.Search(q)
	if err != nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexComment indexes a comment (fire-and-forget to Meilisearch).
func (s *Service) IndexComment(c CommentRecord) {
	_ = s.memory.IndexComment(c)
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexComment(c); err != nil {
			s.log.Warn().Err(err).Str("comment", c.ID).Msg("search: index comment")
		}
	}()
}

// IndexRevision indexes a revision (fire-and-forget to Meilisearch).
func (s *Service) IndexRevision(r RevisionRecord) {
	_ = s.memory.IndexRevision(r)
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexRevision(r); err != nil {
			s.log.Warn().Err(err).Str("revision", r.ID).Msg("search: index revision")
		}
	}()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
