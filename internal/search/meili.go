package search

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog"
)

const (
	idxComments  = "redline_comments"
	idxRevisions = "redline_revisions"
)

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
	log     zerolog.Logger
}

// NewMeili creates a Meilisearch client and configures indexes. The caller
// should proceed without it when the instance stays unreachable; a background
// monitor reconfigures the indexes on recovery.
func NewMeili(url, apiKey string, logger zerolog.Logger) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
		log:    logger,
	}

	if _, err := client.Health(); err != nil {
		m.log.Warn().Err(err).Str("url", url).Msg("search: meilisearch unavailable")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		primaryKey string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxComments,
			primaryKey: "id",
			filterable: []string{"documentId", "versionId", "sectionPath"},
			searchable: []string{"content", "sectionPath"},
		},
		{
			uid:        idxRevisions,
			primaryKey: "id",
			filterable: []string{"documentId", "status"},
			searchable: []string{"reason"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: idx.primaryKey,
		}); err != nil {
			m.log.Debug().Err(err).Str("index", idx.uid).Msg("search: create index (may already exist)")
		}

		index := m.client.Index(idx.uid)
		filterable := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			m.log.Warn().Err(err).Str("index", idx.uid).Msg("search: update filterable attrs")
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			m.log.Warn().Err(err).Str("index", idx.uid).Msg("search: update searchable attrs")
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.log.Info().Msg("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries both indexes (or a filtered subset) and merges results.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}
	var filter interface{}
	if q.FilterDocument != "" {
		filter = fmt.Sprintf("documentId = %q", q.FilterDocument)
	}

	var results []Result
	total := 0

	if q.FilterType == "" || q.FilterType == ResultComment {
		resp, err := m.client.Index(idxComments).Search(q.Text, &meili.SearchRequest{Limit: limit, Filter: filter})
		if err != nil {
			return nil, 0, fmt.Errorf("search comments: %w", err)
		}
		total += int(resp.EstimatedTotalHits)
		for _, hit := range resp.Hits {
			results = append(results, Result{
				Type:        ResultComment,
				ID:          decodeString(hit, "id"),
				DocumentID:  decodeString(hit, "documentId"),
				SectionPath: decodeString(hit, "sectionPath"),
				Snippet:     decodeString(hit, "content"),
				Author:      decodeString(hit, "author"),
			})
		}
	}

	if q.FilterType == "" || q.FilterType == ResultRevision {
		resp, err := m.client.Index(idxRevisions).Search(q.Text, &meili.SearchRequest{Limit: limit, Filter: filter})
		if err != nil {
			return nil, 0, fmt.Errorf("search revisions: %w", err)
		}
		total += int(resp.EstimatedTotalHits)
		for _, hit := range resp.Hits {
			results = append(results, Result{
				Type:       ResultRevision,
				ID:         decodeString(hit, "id"),
				DocumentID: decodeString(hit, "documentId"),
				Snippet:    decodeString(hit, "reason"),
				Author:     decodeString(hit, "author"),
			})
		}
	}

	if len(results) > int(limit) {
		results = results[:limit]
	}
	return results, total, nil
}

// IndexComment pushes one comment record.
func (m *Meili) IndexComment(c CommentRecord) error {
	if _, err := m.client.Index(idxComments).AddDocuments([]CommentRecord{c}, nil); err != nil {
		return fmt.Errorf("index comment %s: %w", c.ID, err)
	}
	return nil
}

// IndexRevision pushes one revision record.
func (m *Meili) IndexRevision(r RevisionRecord) error {
	if _, err := m.client.Index(idxRevisions).AddDocuments([]RevisionRecord{r}, nil); err != nil {
		return fmt.Errorf("index revision %s: %w", r.ID, err)
	}
	return nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
