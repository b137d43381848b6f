package app

import (
	"context"
	"strings"
	"time"

	"redline/internal/store"
	"redline/internal/util"
)

// AcquireLock grants a time-bounded lock on a section. Conflict detection and
// lock creation happen inside one critical section: two editors can never
// race into the same exclusive lock. Acquisition is non-blocking — callers
// retry with their own backoff.
func (s *Service) AcquireLock(ctx context.Context, sessionID, sectionPath, userID, lockType string, durationMinutes int) (store.EditingLock, error) {
	sectionPath = strings.TrimSpace(sectionPath)
	if sectionPath == "" {
		return store.EditingLock{}, invalid("sectionPath is required")
	}
	if strings.TrimSpace(userID) == "" {
		return store.EditingLock{}, invalid("userId is required")
	}
	if lockType != store.LockExclusive && lockType != store.LockShared {
		return store.EditingLock{}, invalid("invalid lock type %q", lockType)
	}
	if durationMinutes <= 0 {
		durationMinutes = s.cfg.DefaultLockMinutes
		if durationMinutes <= 0 {
			durationMinutes = 30
		}
	}

	s.sessionsMu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.sessionsMu.Unlock()
		if session = s.loadSession(ctx, sessionID); session == nil {
			return store.EditingLock{}, notFound("session %s not found", sessionID)
		}
		s.sessionsMu.Lock()
	}

	now := s.now()
	s.pruneExpiredLocks(session, now)
	for _, existing := range session.Locks {
		if existing.SectionPath == sectionPath && existing.Type == store.LockExclusive {
			holder := existing.LockedBy
			s.sessionsMu.Unlock()
			return store.EditingLock{}, conflict("section %s is locked by %s", sectionPath, holder)
		}
	}

	lock := store.EditingLock{
		LockID:      util.NewID("lck"),
		SectionPath: sectionPath,
		LockedBy:    userID,
		LockExpires: now.Add(time.Duration(durationMinutes) * time.Minute),
		Type:        lockType,
	}
	session.Locks = append(session.Locks, lock)
	snapshot := cloneSession(session)
	s.sessionsMu.Unlock()

	s.persist(ctx, sessionPath(snapshot.DocumentID, snapshot.SessionID), snapshot)
	return lock, nil
}

// ReleaseLock removes a lock by id. Only the holder may release it; releasing
// a lock that no longer exists succeeds silently.
func (s *Service) ReleaseLock(ctx context.Context, lockID, userID string) error {
	s.sessionsMu.Lock()
	for _, session := range s.sessions {
		for i, lock := range session.Locks {
			if lock.LockID != lockID {
				continue
			}
			if lock.LockedBy != userID {
				s.sessionsMu.Unlock()
				return unauthorized("lock %s is held by %s", lockID, lock.LockedBy)
			}
			session.Locks = append(session.Locks[:i], session.Locks[i+1:]...)
			snapshot := cloneSession(session)
			s.sessionsMu.Unlock()
			s.persist(ctx, sessionPath(snapshot.DocumentID, snapshot.SessionID), snapshot)
			return nil
		}
	}
	s.sessionsMu.Unlock()
	return nil
}

// RefreshLock extends a lock's expiry by additionalMinutes.
func (s *Service) RefreshLock(ctx context.Context, lockID, userID string, additionalMinutes int) (store.EditingLock, error) {
	if additionalMinutes <= 0 {
		return store.EditingLock{}, invalid("additionalMinutes must be positive")
	}

	s.sessionsMu.Lock()
	for _, session := range s.sessions {
		for i := range session.Locks {
			lock := &session.Locks[i]
			if lock.LockID != lockID {
				continue
			}
			if lock.LockedBy != userID {
				holder := lock.LockedBy
				s.sessionsMu.Unlock()
				return store.EditingLock{}, unauthorized("lock %s is held by %s", lockID, holder)
			}
			lock.LockExpires = lock.LockExpires.Add(time.Duration(additionalMinutes) * time.Minute)
			refreshed := *lock
			snapshot := cloneSession(session)
			s.sessionsMu.Unlock()
			s.persist(ctx, sessionPath(snapshot.DocumentID, snapshot.SessionID), snapshot)
			return refreshed, nil
		}
	}
	s.sessionsMu.Unlock()
	return store.EditingLock{}, notFound("lock %s not found", lockID)
}

// GetSessionLocks returns the live locks for a session. Expired locks are
// pruned here, at read time — there is no background sweeper, so validity is
// always a wall-clock comparison on the read path.
func (s *Service) GetSessionLocks(ctx context.Context, sessionID string) ([]store.EditingLock, error) {
	s.sessionsMu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.sessionsMu.Unlock()
		if session = s.loadSession(ctx, sessionID); session == nil {
			return nil, notFound("session %s not found", sessionID)
		}
		s.sessionsMu.Lock()
	}

	s.pruneExpiredLocks(session, s.now())
	locks := append([]store.EditingLock(nil), session.Locks...)
	s.sessionsMu.Unlock()
	return locks, nil
}

// CheckSectionLock is a read-only conflict probe: it reports whether a live
// exclusive lock covers the section path in this session.
func (s *Service) CheckSectionLock(ctx context.Context, sessionID, sectionPath string) (bool, *store.EditingLock, error) {
	locks, err := s.GetSessionLocks(ctx, sessionID)
	if err != nil {
		return false, nil, err
	}
	for _, lock := range locks {
		if lock.SectionPath == sectionPath && lock.Type == store.LockExclusive {
			held := lock
			return true, &held, nil
		}
	}
	return false, nil, nil
}

// pruneExpiredLocks drops locks whose expiry has passed. Callers must hold
// sessionsMu.
func (s *Service) pruneExpiredLocks(session *store.EditingSession, now time.Time) {
	kept := session.Locks[:0]
	for _, lock := range session.Locks {
		if lock.LockExpires.After(now) {
			kept = append(kept, lock)
		}
	}
	session.Locks = kept
}
