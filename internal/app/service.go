// Package app implements the collaborative editing and versioning engine:
// editing sessions with section locks, threaded comments, content-addressable
// versions and the revision approval workflow.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"redline/internal/config"
	"redline/internal/gitarchive"
	"redline/internal/search"
	"redline/internal/store"
)

// archiveService is the optional git archive for committed version content.
type archiveService interface {
	ArchiveVersion(documentID, versionID, versionNumber string, content []byte, format, author, message string) (store.CommitInfo, error)
}

// commentEntry ties a comment to the root of its thread so replies and
// resolutions can persist the whole thread snapshot.
type commentEntry struct {
	comment *store.DocumentComment
	root    *store.DocumentComment
}

// Service owns the authoritative in-memory registries. The content store is
// written to after every mutation but never consulted as the source of truth
// while an entry is resident; it exists for crash recovery. A crash between
// an in-memory mutation and its durable write loses that write — this is an
// accepted consistency gap, not a bug to recover from.
type Service struct {
	cfg     config.Config
	blobs   store.ContentStore
	archive archiveService
	search  *search.Service
	log     zerolog.Logger

	now func() time.Time

	sessionsMu sync.Mutex
	sessions   map[string]*store.EditingSession

	commentsMu   sync.Mutex
	commentRoots map[string][]*store.DocumentComment
	commentIndex map[string]commentEntry

	versionsMu  sync.Mutex
	versions    map[string]*store.DocumentVersion
	docVersions map[string][]*store.DocumentVersion
	contents    map[string][]byte

	revisionsMu  sync.Mutex
	revisions    map[string]*store.DocumentRevision
	docRevisions map[string][]*store.DocumentRevision
}

// New constructs the engine. blobs, archive and searchService may all be nil;
// the engine then runs purely on its in-memory registries.
func New(cfg config.Config, blobs store.ContentStore, archive *gitarchive.Service, searchService *search.Service, logger zerolog.Logger) *Service {
	s := &Service{
		cfg:          cfg,
		blobs:        blobs,
		search:       searchService,
		log:          logger,
		now:          time.Now,
		sessions:     make(map[string]*store.EditingSession),
		commentRoots: make(map[string][]*store.DocumentComment),
		commentIndex: make(map[string]commentEntry),
		versions:     make(map[string]*store.DocumentVersion),
		docVersions:  make(map[string][]*store.DocumentVersion),
		contents:     make(map[string][]byte),
		revisions:    make(map[string]*store.DocumentRevision),
		docRevisions: make(map[string][]*store.DocumentRevision),
	}
	if archive != nil {
		s.archive = archive
	}
	return s
}

// Ping reports whether the configured content store is reachable. A nil
// store is always healthy: the in-memory registries need nothing external.
func (s *Service) Ping(ctx context.Context) error {
	type pinger interface {
		Ping(ctx context.Context) error
	}
	if p, ok := s.blobs.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Search queries the comment/revision index. Without a search service the
// result is an empty response, not an error.
func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// persist writes a JSON snapshot to the content store. Failures are logged
// and swallowed: callers must not assume durability from a successful call.
func (s *Service) persist(ctx context.Context, path string, payload any) {
	if s.blobs == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("marshal snapshot")
		return
	}
	if _, err := s.blobs.Put(ctx, path, data); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("persist snapshot")
	}
}

func sessionPath(documentID, sessionID string) string {
	return fmt.Sprintf("sessions/%s/%s.json", documentID, sessionID)
}

func commentPath(documentID, commentID string) string {
	return fmt.Sprintf("comments/%s/%s.json", documentID, commentID)
}

func versionMetadataPath(documentID, versionID string) string {
	return fmt.Sprintf("versions/%s/%s.metadata.json", documentID, versionID)
}

func versionContentPath(versionID, format string) string {
	return fmt.Sprintf("versions/%s/content.%s", versionID, contentExt(format))
}

func revisionPath(documentID, revisionID string) string {
	return fmt.Sprintf("revisions/%s/%s.json", documentID, revisionID)
}

func contentExt(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "markdown", "md":
		return "md"
	case "json":
		return "json"
	case "html":
		return "html"
	case "text", "txt", "":
		return "txt"
	default:
		return strings.ToLower(strings.TrimSpace(format))
	}
}
