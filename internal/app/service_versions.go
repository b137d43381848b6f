package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"redline/internal/store"
	"redline/internal/util"
)

// CreateVersion appends a new immutable version to the document's history.
// The predecessor is the version with the latest creation date; the new
// number follows the change-type rule. The content hash is a pure function
// of the content bytes, so identical bytes always produce identical digests.
func (s *Service) CreateVersion(ctx context.Context, documentID, createdBy, changeType, comments string, content []byte, format string) (store.DocumentVersion, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return store.DocumentVersion{}, invalid("documentId is required")
	}
	if strings.TrimSpace(createdBy) == "" {
		return store.DocumentVersion{}, invalid("createdBy is required")
	}
	if changeType == "" {
		changeType = store.ChangePatchUpdate
	}

	s.versionsMu.Lock()
	predecessor := latestVersion(s.docVersions[documentID])
	previousNumber := "1.0"
	if predecessor != nil {
		previousNumber = predecessor.VersionNumber
	}

	version := &store.DocumentVersion{
		VersionID:     util.NewID("ver"),
		DocumentID:    documentID,
		VersionNumber: nextVersionNumber(previousNumber, changeType),
		CreatedBy:     createdBy,
		CreatedDate:   s.now(),
		Comments:      comments,
		ChangeType:    changeType,
		ContentHash:   ContentHash(content),
		SizeBytes:     int64(len(content)),
		Format:        format,
		ChangeSummary: []string{},
	}
	if comments != "" {
		version.ChangeSummary = append(version.ChangeSummary, comments)
	}
	version.BlobReference = versionContentPath(version.VersionID, format)

	buf := make([]byte, len(content))
	copy(buf, content)
	s.contents[version.VersionID] = buf
	s.versions[version.VersionID] = version
	s.docVersions[documentID] = append(s.docVersions[documentID], version)
	snapshot := *version
	s.versionsMu.Unlock()

	if s.blobs != nil {
		if ref, err := s.blobs.Put(ctx, versionContentPath(snapshot.VersionID, format), content); err != nil {
			s.log.Warn().Err(err).Str("version", snapshot.VersionID).Msg("persist version content")
		} else if ref != "" {
			s.versionsMu.Lock()
			s.versions[snapshot.VersionID].BlobReference = ref
			snapshot.BlobReference = ref
			s.versionsMu.Unlock()
		}
	}
	s.persist(ctx, versionMetadataPath(documentID, snapshot.VersionID), snapshot)

	if s.archive != nil {
		commit, err := s.archive.ArchiveVersion(documentID, snapshot.VersionID, snapshot.VersionNumber, content, format, createdBy, comments)
		if err != nil {
			s.log.Warn().Err(err).Str("version", snapshot.VersionID).Msg("archive version")
		} else {
			s.log.Debug().Str("version", snapshot.VersionID).Str("commit", commit.Hash).Msg("version archived")
		}
	}
	return snapshot, nil
}

// GetVersions lists a document's versions, newest first.
func (s *Service) GetVersions(_ context.Context, documentID string) ([]store.DocumentVersion, error) {
	s.versionsMu.Lock()
	defer s.versionsMu.Unlock()

	versions := make([]store.DocumentVersion, 0, len(s.docVersions[documentID]))
	for _, version := range s.docVersions[documentID] {
		versions = append(versions, *version)
	}
	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].CreatedDate.After(versions[j].CreatedDate)
	})
	return versions, nil
}

func (s *Service) GetVersion(_ context.Context, versionID string) (store.DocumentVersion, error) {
	s.versionsMu.Lock()
	defer s.versionsMu.Unlock()

	version, ok := s.versions[versionID]
	if !ok {
		return store.DocumentVersion{}, notFound("version %s not found", versionID)
	}
	return *version, nil
}

// CompareVersions compares two versions by content hash. Differing hashes
// yield exactly one Modify change record; identical hashes yield none. No
// byte-level diff is computed.
func (s *Service) CompareVersions(_ context.Context, versionID1, versionID2 string) ([]store.RevisionChange, error) {
	s.versionsMu.Lock()
	first, ok1 := s.versions[versionID1]
	second, ok2 := s.versions[versionID2]
	s.versionsMu.Unlock()

	if !ok1 {
		return nil, notFound("version %s not found", versionID1)
	}
	if !ok2 {
		return nil, notFound("version %s not found", versionID2)
	}

	if first.ContentHash == second.ContentHash {
		return []store.RevisionChange{}, nil
	}
	return []store.RevisionChange{{
		Operation:         store.OpModify,
		ChangeDescription: fmt.Sprintf("content changed between %s and %s", first.VersionNumber, second.VersionNumber),
		OldContent:        first.ContentHash,
		NewContent:        second.ContentHash,
		Timestamp:         s.now(),
		ChangedBy:         "system",
	}}, nil
}

// RollbackToVersion re-commits a prior version's content as a new major
// version. Rollback never rewrites history: the target stays in the log and
// the rollback itself becomes the newest entry.
func (s *Service) RollbackToVersion(ctx context.Context, documentID, versionID, rolledBackBy, reason string) (store.DocumentVersion, error) {
	s.versionsMu.Lock()
	target, ok := s.versions[versionID]
	if !ok || target.DocumentID != documentID {
		s.versionsMu.Unlock()
		return store.DocumentVersion{}, notFound("version %s not found for document %s", versionID, documentID)
	}
	content, ok := s.contents[versionID]
	targetNumber := target.VersionNumber
	format := target.Format
	blobPath := target.BlobReference
	s.versionsMu.Unlock()

	if !ok {
		// Content predates this process; recover it from the store.
		if s.blobs != nil {
			data, err := s.blobs.Get(ctx, blobPath)
			if err != nil {
				s.log.Warn().Err(err).Str("version", versionID).Msg("load rollback content")
			}
			content = data
		}
		if content == nil {
			return store.DocumentVersion{}, notFound("content for version %s is not available", versionID)
		}
	}

	comment := fmt.Sprintf("Rolled back to version %s: %s", targetNumber, reason)
	return s.CreateVersion(ctx, documentID, rolledBackBy, store.ChangeMajorUpdate, comment, content, format)
}

// ContentHash returns the deterministic digest recorded on every version.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// latestVersion picks the predecessor: the version with the latest creation
// date, by scan. Callers must hold versionsMu.
func latestVersion(versions []*store.DocumentVersion) *store.DocumentVersion {
	var latest *store.DocumentVersion
	for _, version := range versions {
		if latest == nil || version.CreatedDate.After(latest.CreatedDate) {
			latest = version
		}
	}
	return latest
}

// nextVersionNumber applies the dotted major.minor.patch increment rule.
// Unknown change types fall back to a patch increment; Revision keeps the
// predecessor's number.
func nextVersionNumber(previous, changeType string) string {
	major, minor, patch := parseVersionNumber(previous)
	switch changeType {
	case store.ChangeInitialVersion:
		return "1.0.0"
	case store.ChangeRevision:
		return previous
	case store.ChangeMajorUpdate:
		return fmt.Sprintf("%d.0.0", major+1)
	case store.ChangeMinorUpdate:
		return fmt.Sprintf("%d.%d.0", major, minor+1)
	default:
		return fmt.Sprintf("%d.%d.%d", major, minor, patch+1)
	}
}

func parseVersionNumber(number string) (major, minor, patch int) {
	parts := strings.Split(strings.TrimSpace(number), ".")
	read := func(i int) int {
		if i >= len(parts) {
			return 0
		}
		value, err := strconv.Atoi(parts[i])
		if err != nil {
			return 0
		}
		return value
	}
	return read(0), read(1), read(2)
}
