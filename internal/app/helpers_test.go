package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"redline/internal/config"
	"redline/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	blobs := store.NewMemoryStore()
	cfg := config.Config{DefaultLockMinutes: 30}
	return New(cfg, blobs, nil, nil, zerolog.Nop()), blobs
}

func startTestSession(t *testing.T, s *Service, documentID, userID string) store.EditingSession {
	t.Helper()
	session, err := s.StartSession(context.Background(), documentID, "ver_base", userID, "editing")
	require.NoError(t, err)
	return session
}

func requireDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var derr *DomainError
	require.ErrorAs(t, err, &derr)
	require.Equal(t, code, derr.Code)
}

// frozenClock pins the service clock and returns an advance function.
func frozenClock(s *Service) (time.Time, func(d time.Duration)) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	s.now = func() time.Time { return current }
	return base, func(d time.Duration) { current = current.Add(d) }
}
