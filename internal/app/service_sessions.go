package app

import (
	"context"
	"encoding/json"
	"strings"

	"redline/internal/store"
	"redline/internal/util"
)

var allowedParticipantRoles = map[string]struct{}{
	store.RoleOwner:     {},
	store.RoleEditor:    {},
	store.RoleViewer:    {},
	store.RoleCommenter: {},
}

// StartSession opens an editing session against a document version and
// enrolls the initiator as Owner.
func (s *Service) StartSession(ctx context.Context, documentID, versionID, initiatedBy, sessionType string) (store.EditingSession, error) {
	documentID = strings.TrimSpace(documentID)
	initiatedBy = strings.TrimSpace(initiatedBy)
	if documentID == "" {
		return store.EditingSession{}, invalid("documentId is required")
	}
	if initiatedBy == "" {
		return store.EditingSession{}, invalid("initiatedBy is required")
	}
	if sessionType == "" {
		sessionType = "editing"
	}

	now := s.now()
	session := &store.EditingSession{
		SessionID:   util.NewID("ses"),
		DocumentID:  documentID,
		VersionID:   strings.TrimSpace(versionID),
		InitiatedBy: initiatedBy,
		SessionType: sessionType,
		Status:      store.SessionActive,
		StartTime:   now,
		Participants: []store.SessionParticipant{{
			UserID:   initiatedBy,
			UserName: initiatedBy,
			Role:     store.RoleOwner,
			JoinedAt: now,
			IsActive: true,
		}},
		Locks: []store.EditingLock{},
	}

	s.sessionsMu.Lock()
	s.sessions[session.SessionID] = session
	snapshot := cloneSession(session)
	s.sessionsMu.Unlock()

	s.persist(ctx, sessionPath(snapshot.DocumentID, snapshot.SessionID), snapshot)
	return snapshot, nil
}

// JoinSession adds a participant to an active session.
func (s *Service) JoinSession(ctx context.Context, sessionID, userID, userName, userEmail, role string) (store.SessionParticipant, error) {
	if strings.TrimSpace(userID) == "" {
		return store.SessionParticipant{}, invalid("userId is required")
	}
	if role == "" {
		role = store.RoleEditor
	}
	if _, ok := allowedParticipantRoles[role]; !ok {
		return store.SessionParticipant{}, invalid("invalid participant role %q", role)
	}

	s.sessionsMu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.sessionsMu.Unlock()
		if session = s.loadSession(ctx, sessionID); session == nil {
			return store.SessionParticipant{}, notFound("session %s not found", sessionID)
		}
		s.sessionsMu.Lock()
	}

	participant := store.SessionParticipant{
		UserID:    userID,
		UserName:  userName,
		UserEmail: userEmail,
		Role:      role,
		JoinedAt:  s.now(),
		IsActive:  true,
	}
	session.Participants = append(session.Participants, participant)
	snapshot := cloneSession(session)
	s.sessionsMu.Unlock()

	s.persist(ctx, sessionPath(snapshot.DocumentID, snapshot.SessionID), snapshot)
	return participant, nil
}

// LeaveSession marks the participant inactive and releases every lock that
// user holds in the session. Calling it for an unknown session or participant
// is a no-op: departure must be safe to repeat.
func (s *Service) LeaveSession(ctx context.Context, sessionID, userID string) error {
	s.sessionsMu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.sessionsMu.Unlock()
		return nil
	}

	found := false
	now := s.now()
	for i := range session.Participants {
		p := &session.Participants[i]
		if p.UserID == userID && p.IsActive {
			left := now
			p.LeftAt = &left
			p.IsActive = false
			found = true
		}
	}
	if found {
		kept := session.Locks[:0]
		for _, lock := range session.Locks {
			if lock.LockedBy != userID {
				kept = append(kept, lock)
			}
		}
		session.Locks = kept
	}
	snapshot := cloneSession(session)
	s.sessionsMu.Unlock()

	if found {
		s.persist(ctx, sessionPath(snapshot.DocumentID, snapshot.SessionID), snapshot)
	}
	return nil
}

// EndSession completes the session and clears all locks. Ending an unknown
// session is a no-op.
func (s *Service) EndSession(ctx context.Context, sessionID, endedBy string) error {
	s.sessionsMu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.sessionsMu.Unlock()
		return nil
	}

	now := s.now()
	session.Status = store.SessionCompleted
	session.EndTime = &now
	session.Locks = []store.EditingLock{}
	snapshot := cloneSession(session)
	s.sessionsMu.Unlock()

	s.log.Info().Str("session", sessionID).Str("by", endedBy).Msg("session ended")
	s.persist(ctx, sessionPath(snapshot.DocumentID, snapshot.SessionID), snapshot)
	return nil
}

// GetSession returns the session, falling back to the content store when the
// in-memory entry is absent (crash recovery).
func (s *Service) GetSession(ctx context.Context, sessionID string) (store.EditingSession, error) {
	s.sessionsMu.Lock()
	session, ok := s.sessions[sessionID]
	if ok {
		snapshot := cloneSession(session)
		s.sessionsMu.Unlock()
		return snapshot, nil
	}
	s.sessionsMu.Unlock()

	if session = s.loadSession(ctx, sessionID); session != nil {
		s.sessionsMu.Lock()
		snapshot := cloneSession(session)
		s.sessionsMu.Unlock()
		return snapshot, nil
	}
	return store.EditingSession{}, notFound("session %s not found", sessionID)
}

// GetActiveSessions lists sessions with status Active for the document.
func (s *Service) GetActiveSessions(_ context.Context, documentID string) ([]store.EditingSession, error) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	active := make([]store.EditingSession, 0)
	for _, session := range s.sessions {
		if session.DocumentID == documentID && session.Status == store.SessionActive {
			active = append(active, cloneSession(session))
		}
	}
	return active, nil
}

// UpdateParticipantSection tracks the section a participant is currently
// viewing. Unknown sessions or participants are ignored.
func (s *Service) UpdateParticipantSection(ctx context.Context, sessionID, userID, sectionPath string) error {
	s.sessionsMu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.sessionsMu.Unlock()
		return nil
	}

	updated := false
	for i := range session.Participants {
		p := &session.Participants[i]
		if p.UserID == userID && p.IsActive {
			p.CurrentSection = sectionPath
			updated = true
		}
	}
	snapshot := cloneSession(session)
	s.sessionsMu.Unlock()

	if updated {
		s.persist(ctx, sessionPath(snapshot.DocumentID, snapshot.SessionID), snapshot)
	}
	return nil
}

// loadSession recovers a session snapshot from the content store and adopts
// it into the registry. Returns nil when no snapshot exists. The snapshot
// path includes the document id, so recovery goes through List.
func (s *Service) loadSession(ctx context.Context, sessionID string) *store.EditingSession {
	if s.blobs == nil {
		return nil
	}
	paths, err := s.blobs.List(ctx, "sessions/")
	if err != nil {
		s.log.Warn().Err(err).Msg("list session snapshots")
		return nil
	}
	suffix := "/" + sessionID + ".json"
	for _, path := range paths {
		if !strings.HasSuffix(path, suffix) {
			continue
		}
		data, err := s.blobs.Get(ctx, path)
		if err != nil || data == nil {
			continue
		}
		var session store.EditingSession
		if err := json.Unmarshal(data, &session); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("decode session snapshot")
			continue
		}
		s.sessionsMu.Lock()
		// Another caller may have recovered it first; keep the resident copy.
		if resident, ok := s.sessions[session.SessionID]; ok {
			s.sessionsMu.Unlock()
			return resident
		}
		adopted := session
		s.sessions[adopted.SessionID] = &adopted
		s.sessionsMu.Unlock()
		return &adopted
	}
	return nil
}

func cloneSession(session *store.EditingSession) store.EditingSession {
	snapshot := *session
	snapshot.Participants = append([]store.SessionParticipant(nil), session.Participants...)
	snapshot.Locks = append([]store.EditingLock(nil), session.Locks...)
	return snapshot
}
