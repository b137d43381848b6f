package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"redline/internal/search"
	"redline/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	log        zerolog.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, logger zerolog.Logger) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, log: logger}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"contentStore": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["contentStore"] = map[string]any{"status": "error", "error": err.Error()}
		}
		writeJSON(w, statusCode, map[string]any{"ok": status == "ready", "status": status, "checks": checks})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
				limit = parsed
			}
		}
		response := s.service.Search(search.Query{
			Text:           q,
			FilterType:     search.ResultType(strings.TrimSpace(r.URL.Query().Get("type"))),
			FilterDocument: strings.TrimSpace(r.URL.Query().Get("documentId")),
			Limit:          limit,
		})
		writeJSON(w, http.StatusOK, response)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "sessions":
		s.handleSessions(w, r, parts)
	case "locks":
		s.handleLocks(w, r, parts)
	case "comments":
		s.handleComments(w, r, parts)
	case "documents":
		s.handleDocuments(w, r, parts)
	case "versions":
		s.handleVersions(w, r, parts)
	case "revisions":
		s.handleRevisions(w, r, parts)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request, parts []string) {
	// POST /api/sessions
	if len(parts) == 2 && r.Method == http.MethodPost {
		var body struct {
			DocumentID  string `json:"documentId"`
			VersionID   string `json:"versionId"`
			InitiatedBy string `json:"initiatedBy"`
			SessionType string `json:"sessionType"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.StartSession(r.Context(), body.DocumentID, body.VersionID, body.InitiatedBy, body.SessionType)
		s.respond(w, session, err, http.StatusCreated)
		return
	}

	if len(parts) < 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	sessionID := parts[2]

	// GET /api/sessions/{id}
	if len(parts) == 3 && r.Method == http.MethodGet {
		session, err := s.service.GetSession(r.Context(), sessionID)
		s.respond(w, session, err, http.StatusOK)
		return
	}

	if len(parts) == 4 && r.Method == http.MethodPost {
		switch parts[3] {
		case "join":
			var body struct {
				UserID    string `json:"userId"`
				UserName  string `json:"userName"`
				UserEmail string `json:"userEmail"`
				Role      string `json:"role"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			participant, err := s.service.JoinSession(r.Context(), sessionID, body.UserID, body.UserName, body.UserEmail, body.Role)
			s.respond(w, participant, err, http.StatusOK)
			return
		case "leave":
			var body struct {
				UserID string `json:"userId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			err := s.service.LeaveSession(r.Context(), sessionID, body.UserID)
			s.respond(w, map[string]any{"ok": true}, err, http.StatusOK)
			return
		case "end":
			var body struct {
				EndedBy string `json:"endedBy"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			err := s.service.EndSession(r.Context(), sessionID, body.EndedBy)
			s.respond(w, map[string]any{"ok": true}, err, http.StatusOK)
			return
		case "section":
			var body struct {
				UserID      string `json:"userId"`
				SectionPath string `json:"sectionPath"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			err := s.service.UpdateParticipantSection(r.Context(), sessionID, body.UserID, body.SectionPath)
			s.respond(w, map[string]any{"ok": true}, err, http.StatusOK)
			return
		case "locks":
			var body struct {
				SectionPath     string `json:"sectionPath"`
				UserID          string `json:"userId"`
				Type            string `json:"type"`
				DurationMinutes int    `json:"durationMinutes"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			lock, err := s.service.AcquireLock(r.Context(), sessionID, body.SectionPath, body.UserID, body.Type, body.DurationMinutes)
			s.respond(w, lock, err, http.StatusCreated)
			return
		}
	}

	// GET /api/sessions/{id}/locks and /api/sessions/{id}/locks/check
	if r.Method == http.MethodGet && len(parts) >= 4 && parts[3] == "locks" {
		if len(parts) == 5 && parts[4] == "check" {
			sectionPath := strings.TrimSpace(r.URL.Query().Get("sectionPath"))
			locked, lock, err := s.service.CheckSectionLock(r.Context(), sessionID, sectionPath)
			if err != nil {
				s.respond(w, nil, err, http.StatusOK)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"isLocked": locked, "lock": lock})
			return
		}
		locks, err := s.service.GetSessionLocks(r.Context(), sessionID)
		s.respond(w, locks, err, http.StatusOK)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleLocks(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 4 || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	lockID := parts[2]

	switch parts[3] {
	case "release":
		var body struct {
			UserID string `json:"userId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		err := s.service.ReleaseLock(r.Context(), lockID, body.UserID)
		s.respond(w, map[string]any{"ok": true}, err, http.StatusOK)
	case "refresh":
		var body struct {
			UserID            string `json:"userId"`
			AdditionalMinutes int    `json:"additionalMinutes"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		lock, err := s.service.RefreshLock(r.Context(), lockID, body.UserID, body.AdditionalMinutes)
		s.respond(w, lock, err, http.StatusOK)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleComments(w http.ResponseWriter, r *http.Request, parts []string) {
	// POST /api/comments
	if len(parts) == 2 && r.Method == http.MethodPost {
		var body struct {
			DocumentID  string `json:"documentId"`
			VersionID   string `json:"versionId"`
			SectionPath string `json:"sectionPath"`
			Content     string `json:"content"`
			AuthorID    string `json:"authorId"`
			AuthorName  string `json:"authorName"`
			Type        string `json:"type"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		comment, err := s.service.AddComment(r.Context(), body.DocumentID, body.VersionID, body.SectionPath, body.Content, body.AuthorID, body.AuthorName, body.Type)
		s.respond(w, comment, err, http.StatusCreated)
		return
	}

	if len(parts) == 4 && r.Method == http.MethodPost {
		commentID := parts[2]
		switch parts[3] {
		case "replies":
			var body struct {
				Content    string `json:"content"`
				AuthorID   string `json:"authorId"`
				AuthorName string `json:"authorName"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			reply, err := s.service.ReplyToComment(r.Context(), commentID, body.Content, body.AuthorID, body.AuthorName)
			s.respond(w, reply, err, http.StatusCreated)
			return
		case "resolve":
			var body struct {
				ResolvedBy string `json:"resolvedBy"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			err := s.service.ResolveComment(r.Context(), commentID, body.ResolvedBy)
			s.respond(w, map[string]any{"ok": true}, err, http.StatusOK)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleDocuments(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 4 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	documentID := parts[2]

	switch {
	case parts[3] == "sessions" && r.Method == http.MethodGet:
		sessions, err := s.service.GetActiveSessions(r.Context(), documentID)
		s.respond(w, sessions, err, http.StatusOK)

	case parts[3] == "comments" && r.Method == http.MethodGet:
		versionID := strings.TrimSpace(r.URL.Query().Get("versionId"))
		includeResolved := r.URL.Query().Get("includeResolved") == "true"
		comments, err := s.service.GetComments(r.Context(), documentID, versionID, includeResolved)
		s.respond(w, comments, err, http.StatusOK)

	case parts[3] == "versions" && r.Method == http.MethodGet:
		versions, err := s.service.GetVersions(r.Context(), documentID)
		s.respond(w, versions, err, http.StatusOK)

	case parts[3] == "versions" && r.Method == http.MethodPost:
		var body struct {
			CreatedBy  string `json:"createdBy"`
			ChangeType string `json:"changeType"`
			Comments   string `json:"comments"`
			Content    string `json:"content"`
			Format     string `json:"format"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		version, err := s.service.CreateVersion(r.Context(), documentID, body.CreatedBy, body.ChangeType, body.Comments, []byte(body.Content), body.Format)
		s.respond(w, version, err, http.StatusCreated)

	case parts[3] == "rollback" && r.Method == http.MethodPost:
		var body struct {
			VersionID    string `json:"versionId"`
			RolledBackBy string `json:"rolledBackBy"`
			Reason       string `json:"reason"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		version, err := s.service.RollbackToVersion(r.Context(), documentID, body.VersionID, body.RolledBackBy, body.Reason)
		s.respond(w, version, err, http.StatusCreated)

	case parts[3] == "revisions" && r.Method == http.MethodGet:
		revisions, err := s.service.GetRevisionHistory(r.Context(), documentID)
		s.respond(w, revisions, err, http.StatusOK)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleVersions(w http.ResponseWriter, r *http.Request, parts []string) {
	// GET /api/versions/compare?from=&to=
	if len(parts) == 3 && parts[2] == "compare" && r.Method == http.MethodGet {
		from := strings.TrimSpace(r.URL.Query().Get("from"))
		to := strings.TrimSpace(r.URL.Query().Get("to"))
		changes, err := s.service.CompareVersions(r.Context(), from, to)
		s.respond(w, changes, err, http.StatusOK)
		return
	}

	if len(parts) == 3 && r.Method == http.MethodGet {
		version, err := s.service.GetVersion(r.Context(), parts[2])
		s.respond(w, version, err, http.StatusOK)
		return
	}

	// POST /api/versions/{id}/revisions
	if len(parts) == 4 && parts[3] == "revisions" && r.Method == http.MethodPost {
		var body struct {
			RevisedBy string                `json:"revisedBy"`
			Reason    string                `json:"reason"`
			Changes   []revisionChangeInput `json:"changes"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		revision, err := s.service.CreateRevision(r.Context(), parts[2], body.RevisedBy, body.Reason, toRevisionChanges(body.Changes))
		s.respond(w, revision, err, http.StatusCreated)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleRevisions(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 4 || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	revisionID := parts[2]

	switch parts[3] {
	case "approve":
		var body struct {
			ApprovedBy string `json:"approvedBy"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		revision, err := s.service.ApproveRevision(r.Context(), revisionID, body.ApprovedBy)
		s.respond(w, revision, err, http.StatusOK)
	case "reject":
		var body struct {
			RejectedBy string `json:"rejectedBy"`
			Reason     string `json:"reason"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		revision, err := s.service.RejectRevision(r.Context(), revisionID, body.RejectedBy, body.Reason)
		s.respond(w, revision, err, http.StatusOK)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) respond(w http.ResponseWriter, payload any, err error, okStatus int) {
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, okStatus, payload)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", time.Since(started).Milliseconds()).
			Msg("request")
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type revisionChangeInput struct {
	Operation         string `json:"operation"`
	ChangeDescription string `json:"changeDescription"`
	OldContent        string `json:"oldContent"`
	NewContent        string `json:"newContent"`
}

func toRevisionChanges(inputs []revisionChangeInput) []store.RevisionChange {
	changes := make([]store.RevisionChange, 0, len(inputs))
	for _, input := range inputs {
		changes = append(changes, store.RevisionChange{
			Operation:         input.Operation,
			ChangeDescription: input.ChangeDescription,
			OldContent:        input.OldContent,
			NewContent:        input.NewContent,
		})
	}
	return changes
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func mapError(err error) (int, string, string, any) {
	var domain *DomainError
	if errors.As(err, &domain) {
		return domain.Status, domain.Code, domain.Message, domain.Details
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Internal server error", nil
}

func decodeBody(r *http.Request, target any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 10<<20))
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
