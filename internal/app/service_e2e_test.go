package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redline/internal/store"
)

// Full review cycle: draft a version, open a session, lock a section, discuss
// it in a thread, propose and reject a revision, ship a fix, roll it back.
func TestReviewWorkflow(t *testing.T) {
	s, _ := newTestService(t)
	_, advance := frozenClock(s)
	ctx := context.Background()

	draft, err := s.CreateVersion(ctx, "doc-rfc", "alice", store.ChangeInitialVersion, "first draft", []byte("# RFC\nInitial text."), "md")
	require.NoError(t, err)
	require.Equal(t, "1.0.0", draft.VersionNumber)

	session, err := s.StartSession(ctx, "doc-rfc", draft.VersionID, "alice", "review")
	require.NoError(t, err)
	_, err = s.JoinSession(ctx, session.SessionID, "bob", "Bob", "bob@example.com", store.RoleEditor)
	require.NoError(t, err)

	lock, err := s.AcquireLock(ctx, session.SessionID, "section/motivation", "bob", store.LockExclusive, 15)
	require.NoError(t, err)
	_, err = s.AcquireLock(ctx, session.SessionID, "section/motivation", "alice", store.LockExclusive, 15)
	requireDomainCode(t, err, "CONFLICT")

	comment, err := s.AddComment(ctx, "doc-rfc", draft.VersionID, "section/motivation", "motivation is thin", "alice", "Alice", store.CommentIssue)
	require.NoError(t, err)
	advance(time.Minute)
	_, err = s.ReplyToComment(ctx, comment.CommentID, "expanding it now", "bob", "Bob")
	require.NoError(t, err)

	revision, err := s.CreateRevision(ctx, draft.VersionID, "bob", "expand motivation", []store.RevisionChange{
		{Operation: store.OpModify, ChangeDescription: "add two paragraphs"},
	})
	require.NoError(t, err)
	rejected, err := s.RejectRevision(ctx, revision.RevisionID, "alice", "cite the incident report")
	require.NoError(t, err)
	assert.Contains(t, rejected.RevisionReason, "Rejected: cite the incident report")

	advance(time.Minute)
	second, err := s.CreateVersion(ctx, "doc-rfc", "bob", store.ChangeMinorUpdate, "motivation expanded with citations", []byte("# RFC\nExpanded text."), "md")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", second.VersionNumber)

	require.NoError(t, s.ResolveComment(ctx, comment.CommentID, "alice"))
	open, err := s.GetComments(ctx, "doc-rfc", "", false)
	require.NoError(t, err)
	assert.Empty(t, open)

	require.NoError(t, s.ReleaseLock(ctx, lock.LockID, "bob"))
	require.NoError(t, s.EndSession(ctx, session.SessionID, "alice"))

	// The expansion turns out to be wrong: restore the draft content as a
	// fresh major version without touching history.
	advance(time.Minute)
	rolled, err := s.RollbackToVersion(ctx, "doc-rfc", draft.VersionID, "alice", "citations were bogus")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", rolled.VersionNumber)
	assert.Equal(t, draft.ContentHash, rolled.ContentHash)

	versions, err := s.GetVersions(ctx, "doc-rfc")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, rolled.VersionID, versions[0].VersionID)
}
