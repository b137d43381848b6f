package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"redline/internal/search"
	"redline/internal/store"
	"redline/internal/util"
)

// CreateRevision proposes a named change set against an existing version.
// New revisions start Pending.
func (s *Service) CreateRevision(ctx context.Context, versionID, revisedBy, reason string, changes []store.RevisionChange) (store.DocumentRevision, error) {
	if strings.TrimSpace(revisedBy) == "" {
		return store.DocumentRevision{}, invalid("revisedBy is required")
	}

	version, err := s.GetVersion(ctx, versionID)
	if err != nil {
		return store.DocumentRevision{}, err
	}

	now := s.now()
	normalized := make([]store.RevisionChange, 0, len(changes))
	for _, change := range changes {
		if change.Operation == "" {
			change.Operation = store.OpModify
		}
		if change.Timestamp.IsZero() {
			change.Timestamp = now
		}
		if change.ChangedBy == "" {
			change.ChangedBy = revisedBy
		}
		normalized = append(normalized, change)
	}

	revision := &store.DocumentRevision{
		RevisionID:     util.NewID("rev"),
		DocumentID:     version.DocumentID,
		VersionID:      versionID,
		RevisedBy:      revisedBy,
		RevisionReason: reason,
		Changes:        normalized,
		ApprovalStatus: store.ApprovalPending,
		CreatedAt:      now,
	}

	s.revisionsMu.Lock()
	s.revisions[revision.RevisionID] = revision
	s.docRevisions[version.DocumentID] = append(s.docRevisions[version.DocumentID], revision)
	snapshot := cloneRevision(revision)
	s.revisionsMu.Unlock()

	s.persist(ctx, revisionPath(snapshot.DocumentID, snapshot.RevisionID), snapshot)
	if s.search != nil {
		s.search.IndexRevision(search.RevisionRecord{
			ID:         snapshot.RevisionID,
			DocumentID: snapshot.DocumentID,
			Reason:     snapshot.RevisionReason,
			Status:     snapshot.ApprovalStatus,
			Author:     snapshot.RevisedBy,
		})
	}
	return snapshot, nil
}

// ApproveRevision moves a pending revision to Approved. The transition is
// terminal: approving or rejecting anything but a Pending revision fails
// with Conflict and leaves the stored status untouched.
func (s *Service) ApproveRevision(ctx context.Context, revisionID, approvedBy string) (store.DocumentRevision, error) {
	return s.settleRevision(ctx, revisionID, approvedBy, store.ApprovalApproved, "")
}

// RejectRevision moves a pending revision to Rejected and appends the
// rejection reason to the revision reason.
func (s *Service) RejectRevision(ctx context.Context, revisionID, rejectedBy, reason string) (store.DocumentRevision, error) {
	return s.settleRevision(ctx, revisionID, rejectedBy, store.ApprovalRejected, reason)
}

func (s *Service) settleRevision(ctx context.Context, revisionID, decidedBy, status, reason string) (store.DocumentRevision, error) {
	s.revisionsMu.Lock()
	revision, ok := s.revisions[revisionID]
	if !ok {
		s.revisionsMu.Unlock()
		return store.DocumentRevision{}, notFound("revision %s not found", revisionID)
	}
	if revision.ApprovalStatus != store.ApprovalPending {
		current := revision.ApprovalStatus
		s.revisionsMu.Unlock()
		return store.DocumentRevision{}, conflict("revision %s is already %s", revisionID, current)
	}

	now := s.now()
	revision.ApprovalStatus = status
	revision.ApprovedBy = decidedBy
	revision.ApprovalDate = &now
	if status == store.ApprovalRejected && reason != "" {
		revision.RevisionReason = fmt.Sprintf("%s; Rejected: %s", revision.RevisionReason, reason)
	}
	snapshot := cloneRevision(revision)
	s.revisionsMu.Unlock()

	s.log.Info().Str("revision", revisionID).Str("status", status).Str("by", decidedBy).Msg("revision settled")
	s.persist(ctx, revisionPath(snapshot.DocumentID, snapshot.RevisionID), snapshot)
	return snapshot, nil
}

// GetRevisionHistory lists a document's revisions, newest first.
func (s *Service) GetRevisionHistory(_ context.Context, documentID string) ([]store.DocumentRevision, error) {
	s.revisionsMu.Lock()
	defer s.revisionsMu.Unlock()

	revisions := make([]store.DocumentRevision, 0, len(s.docRevisions[documentID]))
	for _, revision := range s.docRevisions[documentID] {
		revisions = append(revisions, cloneRevision(revision))
	}
	sort.SliceStable(revisions, func(i, j int) bool {
		return revisions[i].CreatedAt.After(revisions[j].CreatedAt)
	})
	return revisions, nil
}

func cloneRevision(revision *store.DocumentRevision) store.DocumentRevision {
	snapshot := *revision
	if revision.ApprovalDate != nil {
		date := *revision.ApprovalDate
		snapshot.ApprovalDate = &date
	}
	snapshot.Changes = append([]store.RevisionChange(nil), revision.Changes...)
	return snapshot
}
