package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redline/internal/store"
)

func TestAcquireLockExclusiveConflicts(t *testing.T) {
	s, _ := newTestService(t)
	session := startTestSession(t, s, "doc-1", "alice")

	lock, err := s.AcquireLock(context.Background(), session.SessionID, "section/intro", "alice", store.LockExclusive, 30)
	require.NoError(t, err)
	assert.NotEmpty(t, lock.LockID)
	assert.Equal(t, store.LockExclusive, lock.Type)

	_, err = s.AcquireLock(context.Background(), session.SessionID, "section/intro", "bob", store.LockExclusive, 30)
	requireDomainCode(t, err, "CONFLICT")

	// Shared acquisition on the same section is also blocked by an
	// exclusive holder.
	_, err = s.AcquireLock(context.Background(), session.SessionID, "section/intro", "bob", store.LockShared, 30)
	requireDomainCode(t, err, "CONFLICT")

	// A different section is free.
	_, err = s.AcquireLock(context.Background(), session.SessionID, "section/scope", "bob", store.LockExclusive, 30)
	require.NoError(t, err)
}

func TestAcquireLockSharedCoexists(t *testing.T) {
	s, _ := newTestService(t)
	session := startTestSession(t, s, "doc-1", "alice")

	_, err := s.AcquireLock(context.Background(), session.SessionID, "section/intro", "alice", store.LockShared, 30)
	require.NoError(t, err)
	_, err = s.AcquireLock(context.Background(), session.SessionID, "section/intro", "bob", store.LockShared, 30)
	require.NoError(t, err)

	locks, err := s.GetSessionLocks(context.Background(), session.SessionID)
	require.NoError(t, err)
	assert.Len(t, locks, 2)
}

func TestAcquireLockValidation(t *testing.T) {
	s, _ := newTestService(t)
	session := startTestSession(t, s, "doc-1", "alice")

	_, err := s.AcquireLock(context.Background(), session.SessionID, "", "alice", store.LockExclusive, 30)
	requireDomainCode(t, err, "VALIDATION_ERROR")

	_, err = s.AcquireLock(context.Background(), session.SessionID, "section/intro", "alice", "sticky", 30)
	requireDomainCode(t, err, "VALIDATION_ERROR")

	_, err = s.AcquireLock(context.Background(), "ses_missing", "section/intro", "alice", store.LockExclusive, 30)
	requireDomainCode(t, err, "NOT_FOUND")
}

func TestAcquireLockDefaultDuration(t *testing.T) {
	s, _ := newTestService(t)
	session := startTestSession(t, s, "doc-1", "alice")
	base, _ := frozenClock(s)

	lock, err := s.AcquireLock(context.Background(), session.SessionID, "section/intro", "alice", store.LockExclusive, 0)
	require.NoError(t, err)
	assert.Equal(t, base.Add(30*time.Minute), lock.LockExpires)
}

func TestExpiredLocksArePrunedOnRead(t *testing.T) {
	s, _ := newTestService(t)
	session := startTestSession(t, s, "doc-1", "alice")
	_, advance := frozenClock(s)

	_, err := s.AcquireLock(context.Background(), session.SessionID, "section/intro", "alice", store.LockExclusive, 10)
	require.NoError(t, err)

	advance(9 * time.Minute)
	locks, err := s.GetSessionLocks(context.Background(), session.SessionID)
	require.NoError(t, err)
	assert.Len(t, locks, 1)

	advance(2 * time.Minute)
	locks, err = s.GetSessionLocks(context.Background(), session.SessionID)
	require.NoError(t, err)
	assert.Empty(t, locks)
}

func TestExpiredExclusiveLockDoesNotBlockAcquisition(t *testing.T) {
	s, _ := newTestService(t)
	session := startTestSession(t, s, "doc-1", "alice")
	_, advance := frozenClock(s)

	_, err := s.AcquireLock(context.Background(), session.SessionID, "section/intro", "alice", store.LockExclusive, 10)
	require.NoError(t, err)

	advance(11 * time.Minute)
	lock, err := s.AcquireLock(context.Background(), session.SessionID, "section/intro", "bob", store.LockExclusive, 10)
	require.NoError(t, err)
	assert.Equal(t, "bob", lock.LockedBy)
}

func TestReleaseLockOwnership(t *testing.T) {
	s, _ := newTestService(t)
	session := startTestSession(t, s, "doc-1", "alice")

	lock, err := s.AcquireLock(context.Background(), session.SessionID, "section/intro", "alice", store.LockExclusive, 30)
	require.NoError(t, err)

	err = s.ReleaseLock(context.Background(), lock.LockID, "bob")
	requireDomainCode(t, err, "UNAUTHORIZED")

	require.NoError(t, s.ReleaseLock(context.Background(), lock.LockID, "alice"))
	locks, err := s.GetSessionLocks(context.Background(), session.SessionID)
	require.NoError(t, err)
	assert.Empty(t, locks)

	// Releasing an already-gone lock succeeds silently.
	require.NoError(t, s.ReleaseLock(context.Background(), lock.LockID, "alice"))
}

func TestRefreshLockExtendsExpiry(t *testing.T) {
	s, _ := newTestService(t)
	session := startTestSession(t, s, "doc-1", "alice")
	base, _ := frozenClock(s)

	lock, err := s.AcquireLock(context.Background(), session.SessionID, "section/intro", "alice", store.LockExclusive, 10)
	require.NoError(t, err)

	refreshed, err := s.RefreshLock(context.Background(), lock.LockID, "alice", 20)
	require.NoError(t, err)
	assert.Equal(t, base.Add(30*time.Minute), refreshed.LockExpires)

	_, err = s.RefreshLock(context.Background(), lock.LockID, "bob", 20)
	requireDomainCode(t, err, "UNAUTHORIZED")

	_, err = s.RefreshLock(context.Background(), lock.LockID, "alice", 0)
	requireDomainCode(t, err, "VALIDATION_ERROR")

	_, err = s.RefreshLock(context.Background(), "lck_missing", "alice", 20)
	requireDomainCode(t, err, "NOT_FOUND")
}

func TestCheckSectionLock(t *testing.T) {
	s, _ := newTestService(t)
	session := startTestSession(t, s, "doc-1", "alice")

	held, _, err := s.CheckSectionLock(context.Background(), session.SessionID, "section/intro")
	require.NoError(t, err)
	assert.False(t, held)

	lock, err := s.AcquireLock(context.Background(), session.SessionID, "section/intro", "alice", store.LockExclusive, 30)
	require.NoError(t, err)

	held, got, err := s.CheckSectionLock(context.Background(), session.SessionID, "section/intro")
	require.NoError(t, err)
	require.True(t, held)
	require.NotNil(t, got)
	assert.Equal(t, lock.LockID, got.LockID)

	// Shared locks do not report the section as held.
	_, err = s.AcquireLock(context.Background(), session.SessionID, "section/scope", "bob", store.LockShared, 30)
	require.NoError(t, err)
	held, _, err = s.CheckSectionLock(context.Background(), session.SessionID, "section/scope")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestLeaveSessionReleasesHeldLocks(t *testing.T) {
	s, _ := newTestService(t)
	session := startTestSession(t, s, "doc-1", "alice")
	_, err := s.JoinSession(context.Background(), session.SessionID, "bob", "Bob", "", store.RoleEditor)
	require.NoError(t, err)

	_, err = s.AcquireLock(context.Background(), session.SessionID, "section/intro", "bob", store.LockExclusive, 30)
	require.NoError(t, err)
	_, err = s.AcquireLock(context.Background(), session.SessionID, "section/scope", "alice", store.LockExclusive, 30)
	require.NoError(t, err)

	require.NoError(t, s.LeaveSession(context.Background(), session.SessionID, "bob"))

	locks, err := s.GetSessionLocks(context.Background(), session.SessionID)
	require.NoError(t, err)
	require.Len(t, locks, 1)
	assert.Equal(t, "alice", locks[0].LockedBy)
}
