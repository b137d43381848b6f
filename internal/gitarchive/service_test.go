package gitarchive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveVersionCommitsAndTags(t *testing.T) {
	s := New(t.TempDir())

	commit, err := s.ArchiveVersion("doc-1", "ver_a", "1.0.0", []byte("# Draft"), "md", "Alice Smith", "first draft")
	require.NoError(t, err)
	assert.Len(t, commit.Hash, 7)
	assert.Equal(t, "first draft", commit.Message)
	assert.Equal(t, "Alice Smith", commit.Author)

	content, err := s.GetContent("doc-1", commit.Hash)
	require.NoError(t, err)
	assert.Equal(t, []byte("# Draft"), content)
}

func TestArchiveVersionDefaultMessage(t *testing.T) {
	s := New(t.TempDir())

	commit, err := s.ArchiveVersion("doc-1", "ver_a", "1.0.0", []byte("x"), "md", "alice", "")
	require.NoError(t, err)
	assert.Equal(t, "Version 1.0.0", commit.Message)
}

func TestHistoryNewestFirstWithLimit(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.ArchiveVersion("doc-1", "ver_a", "1.0.0", []byte("one"), "md", "alice", "first")
	require.NoError(t, err)
	_, err = s.ArchiveVersion("doc-1", "ver_b", "1.0.1", []byte("two"), "md", "alice", "second")
	require.NoError(t, err)
	third, err := s.ArchiveVersion("doc-1", "ver_c", "1.1.0", []byte("three"), "md", "alice", "third")
	require.NoError(t, err)

	history, err := s.History("doc-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, third.Hash, history[0].Hash)
	assert.Equal(t, "third", history[0].Message)

	limited, err := s.History("doc-1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestHistoryUnknownDocument(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.History("doc-missing", 0)
	require.Error(t, err)
}

func TestIdenticalContentCommitsAllowed(t *testing.T) {
	s := New(t.TempDir())

	// A rollback re-commits bytes already at HEAD; the archive must accept
	// the empty diff.
	_, err := s.ArchiveVersion("doc-1", "ver_a", "1.0.0", []byte("same"), "md", "alice", "first")
	require.NoError(t, err)
	_, err = s.ArchiveVersion("doc-1", "ver_b", "2.0.0", []byte("same"), "md", "alice", "rollback")
	require.NoError(t, err)

	history, err := s.History("doc-1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestDocumentsAreIsolated(t *testing.T) {
	s := New(t.TempDir())

	a, err := s.ArchiveVersion("doc-a", "ver_1", "1.0.0", []byte("alpha"), "md", "alice", "a")
	require.NoError(t, err)
	_, err = s.ArchiveVersion("doc-b", "ver_1", "1.0.0", []byte("beta"), "md", "bob", "b")
	require.NoError(t, err)

	historyA, err := s.History("doc-a", 0)
	require.NoError(t, err)
	require.Len(t, historyA, 1)
	assert.Equal(t, a.Hash, historyA[0].Hash)
}

func TestContentFilenameByFormat(t *testing.T) {
	assert.Equal(t, "content.md", contentFilename("markdown"))
	assert.Equal(t, "content.md", contentFilename("MD"))
	assert.Equal(t, "content.json", contentFilename("json"))
	assert.Equal(t, "content.html", contentFilename("html"))
	assert.Equal(t, "content.txt", contentFilename(""))
	assert.Equal(t, "content.txt", contentFilename("docx"))
}

func TestSanitizeEmail(t *testing.T) {
	assert.Equal(t, "Alice.Smith", sanitizeEmail("Alice Smith"))
	assert.Equal(t, "user", sanitizeEmail("!!!"))
}
