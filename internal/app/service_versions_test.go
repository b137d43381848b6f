package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redline/internal/store"
)

func TestCreateVersionNumbering(t *testing.T) {
	s, _ := newTestService(t)
	_, advance := frozenClock(s)
	ctx := context.Background()

	mk := func(changeType string) store.DocumentVersion {
		t.Helper()
		advance(time.Minute)
		version, err := s.CreateVersion(ctx, "doc-1", "alice", changeType, "", []byte("body "+changeType), "md")
		require.NoError(t, err)
		return version
	}

	assert.Equal(t, "1.0.0", mk(store.ChangeInitialVersion).VersionNumber)
	assert.Equal(t, "1.0.1", mk(store.ChangePatchUpdate).VersionNumber)
	assert.Equal(t, "1.0.2", mk(store.ChangePatchUpdate).VersionNumber)
	assert.Equal(t, "1.1.0", mk(store.ChangeMinorUpdate).VersionNumber)
	assert.Equal(t, "2.0.0", mk(store.ChangeMajorUpdate).VersionNumber)
	assert.Equal(t, "2.0.0", mk(store.ChangeRevision).VersionNumber)
	assert.Equal(t, "2.0.1", mk("unheard-of").VersionNumber)
}

func TestCreateVersionFirstWithoutInitialType(t *testing.T) {
	s, _ := newTestService(t)

	// No predecessor: the increment applies to the 1.0 base.
	version, err := s.CreateVersion(context.Background(), "doc-1", "alice", store.ChangeMinorUpdate, "", []byte("x"), "md")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", version.VersionNumber)
}

func TestCreateVersionValidation(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.CreateVersion(context.Background(), "", "alice", "", "", nil, "md")
	requireDomainCode(t, err, "VALIDATION_ERROR")

	_, err = s.CreateVersion(context.Background(), "doc-1", " ", "", "", nil, "md")
	requireDomainCode(t, err, "VALIDATION_ERROR")
}

func TestContentHashIsDeterministic(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	first, err := s.CreateVersion(ctx, "doc-1", "alice", store.ChangeInitialVersion, "", []byte("same bytes"), "md")
	require.NoError(t, err)
	second, err := s.CreateVersion(ctx, "doc-2", "bob", store.ChangeInitialVersion, "", []byte("same bytes"), "md")
	require.NoError(t, err)
	third, err := s.CreateVersion(ctx, "doc-1", "alice", store.ChangePatchUpdate, "", []byte("different"), "md")
	require.NoError(t, err)

	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.NotEqual(t, first.ContentHash, third.ContentHash)
	assert.Equal(t, ContentHash([]byte("same bytes")), first.ContentHash)
	assert.Equal(t, int64(len("same bytes")), first.SizeBytes)
}

func TestCreateVersionWritesContentToStore(t *testing.T) {
	s, blobs := newTestService(t)

	version, err := s.CreateVersion(context.Background(), "doc-1", "alice", store.ChangeInitialVersion, "first draft", []byte("hello"), "md")
	require.NoError(t, err)

	data, err := blobs.Get(context.Background(), version.BlobReference)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	meta, err := blobs.Get(context.Background(), "versions/doc-1/"+version.VersionID+".metadata.json")
	require.NoError(t, err)
	assert.NotNil(t, meta)
}

func TestGetVersionsNewestFirst(t *testing.T) {
	s, _ := newTestService(t)
	_, advance := frozenClock(s)
	ctx := context.Background()

	first, err := s.CreateVersion(ctx, "doc-1", "alice", store.ChangeInitialVersion, "", []byte("a"), "md")
	require.NoError(t, err)
	advance(time.Minute)
	second, err := s.CreateVersion(ctx, "doc-1", "alice", store.ChangePatchUpdate, "", []byte("b"), "md")
	require.NoError(t, err)

	versions, err := s.GetVersions(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, second.VersionID, versions[0].VersionID)
	assert.Equal(t, first.VersionID, versions[1].VersionID)
}

func TestGetVersionNotFound(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.GetVersion(context.Background(), "ver_missing")
	requireDomainCode(t, err, "NOT_FOUND")
}

func TestCompareVersions(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	first, err := s.CreateVersion(ctx, "doc-1", "alice", store.ChangeInitialVersion, "", []byte("alpha"), "md")
	require.NoError(t, err)
	same, err := s.CreateVersion(ctx, "doc-1", "alice", store.ChangeRevision, "", []byte("alpha"), "md")
	require.NoError(t, err)
	changed, err := s.CreateVersion(ctx, "doc-1", "alice", store.ChangePatchUpdate, "", []byte("beta"), "md")
	require.NoError(t, err)

	none, err := s.CompareVersions(ctx, first.VersionID, same.VersionID)
	require.NoError(t, err)
	assert.Empty(t, none)

	diff, err := s.CompareVersions(ctx, first.VersionID, changed.VersionID)
	require.NoError(t, err)
	require.Len(t, diff, 1)
	assert.Equal(t, store.OpModify, diff[0].Operation)
	assert.Equal(t, first.ContentHash, diff[0].OldContent)
	assert.Equal(t, changed.ContentHash, diff[0].NewContent)

	_, err = s.CompareVersions(ctx, first.VersionID, "ver_missing")
	requireDomainCode(t, err, "NOT_FOUND")
}

func TestRollbackAppendsNewMajorVersion(t *testing.T) {
	s, blobs := newTestService(t)
	_, advance := frozenClock(s)
	ctx := context.Background()

	v1, err := s.CreateVersion(ctx, "doc-1", "alice", store.ChangeInitialVersion, "draft", []byte("original"), "md")
	require.NoError(t, err)
	advance(time.Minute)
	_, err = s.CreateVersion(ctx, "doc-1", "alice", store.ChangePatchUpdate, "edit", []byte("edited"), "md")
	require.NoError(t, err)
	advance(time.Minute)

	rolled, err := s.RollbackToVersion(ctx, "doc-1", v1.VersionID, "carol", "bad edit")
	require.NoError(t, err)

	assert.Equal(t, "2.0.0", rolled.VersionNumber)
	assert.Equal(t, store.ChangeMajorUpdate, rolled.ChangeType)
	assert.Equal(t, v1.ContentHash, rolled.ContentHash)
	assert.Contains(t, rolled.Comments, "Rolled back to version 1.0.0")
	assert.Contains(t, rolled.Comments, "bad edit")

	// History is append-only: all three versions remain.
	versions, err := s.GetVersions(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, versions, 3)

	data, err := blobs.Get(ctx, rolled.BlobReference)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), data)
}

func TestRollbackUnknownVersion(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.RollbackToVersion(context.Background(), "doc-1", "ver_missing", "carol", "whoops")
	requireDomainCode(t, err, "NOT_FOUND")
}

func TestRollbackRejectsVersionFromOtherDocument(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	other, err := s.CreateVersion(ctx, "doc-other", "alice", store.ChangeInitialVersion, "", []byte("x"), "md")
	require.NoError(t, err)

	_, err = s.RollbackToVersion(ctx, "doc-1", other.VersionID, "carol", "wrong doc")
	requireDomainCode(t, err, "NOT_FOUND")
}
