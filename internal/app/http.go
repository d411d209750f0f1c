package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agora/api/internal/permission"
	"agora/api/internal/search"
)

// identityHeader is set by the platform gateway after it authenticates the
// user. An absent header means an anonymous visitor.
const identityHeader = "X-Agora-User"

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
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
			"database": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	identity, ok := s.identityFromHeader(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/summary" {
		payload, err := s.service.Summary(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not load summary", nil)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	segments := splitPath(r.URL.Path)
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "components" {
		componentID, err := strconv.ParseInt(segments[2], 10, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "component id must be an integer", nil)
			return
		}
		s.handleComponent(w, r, identity, componentID, segments[3:])
		return
	}
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "questions" {
		questionID, err := strconv.ParseInt(segments[2], 10, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "question id must be an integer", nil)
			return
		}
		s.handleQuestion(w, r, identity, questionID, segments[3:])
		return
	}
	if len(segments) == 4 && segments[0] == "api" && segments[1] == "amendments" {
		amendmentID, err := strconv.ParseInt(segments[2], 10, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "amendment id must be an integer", nil)
			return
		}
		s.handleAmendment(w, r, identity, amendmentID, segments[3])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleComponent(w http.ResponseWriter, r *http.Request, identity Identity, componentID int64, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		payload, err := s.service.ComponentSettings(r.Context(), componentID)
		s.respond(w, payload, err)

	case len(rest) == 1 && rest[0] == "settings" && r.Method == http.MethodPut:
		var body permission.Settings
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateComponentSettings(r.Context(), identity, componentID, body)
		s.respond(w, payload, err)

	case len(rest) == 1 && rest[0] == "questions" && r.Method == http.MethodGet:
		input := ListFilterInput{
			IncludeWithdrawn: queryFlag(r, "include_withdrawn"),
			ExceptRejected:   queryFlag(r, "except_rejected"),
			IncludeDrafts:    queryFlag(r, "include_drafts"),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("state")); raw != "" {
			input.States = strings.Split(raw, ",")
		}
		payload, err := s.service.ListQuestions(r.Context(), identity, componentID, input)
		s.respond(w, payload, err)

	case len(rest) == 1 && rest[0] == "questions" && r.Method == http.MethodPost:
		var body CreateQuestionInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateQuestion(r.Context(), identity, componentID, body)
		if err == nil {
			writeJSON(w, http.StatusCreated, payload)
			return
		}
		s.respond(w, payload, err)

	case len(rest) == 1 && rest[0] == "fork" && r.Method == http.MethodPost:
		var body ForkInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.Fork(r.Context(), identity, componentID, body)
		s.respond(w, payload, err)

	case len(rest) == 1 && rest[0] == "import" && r.Method == http.MethodPost:
		var body ImportInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.ImportParticipatoryText(r.Context(), identity, componentID, body)
		s.respond(w, payload, err)

	case len(rest) == 2 && rest[0] == "import" && rest[1] == "publish" && r.Method == http.MethodPost:
		payload, err := s.service.PublishParticipatoryText(r.Context(), identity, componentID)
		s.respond(w, payload, err)

	case len(rest) == 1 && rest[0] == "export" && r.Method == http.MethodGet:
		s.handleExport(w, r, identity, componentID)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleQuestion(w http.ResponseWriter, r *http.Request, identity Identity, questionID int64, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		payload, err := s.service.GetQuestion(r.Context(), identity, questionID)
		s.respond(w, payload, err)

	case len(rest) == 0 && (r.Method == http.MethodPut || r.Method == http.MethodPatch):
		var body EditQuestionInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.EditQuestion(r.Context(), identity, questionID, body)
		s.respond(w, payload, err)

	case len(rest) == 1 && rest[0] == "withdraw" && r.Method == http.MethodPost:
		payload, err := s.service.WithdrawQuestion(r.Context(), identity, questionID)
		s.respond(w, payload, err)

	case len(rest) == 1 && rest[0] == "answer" && r.Method == http.MethodPost:
		var body AnswerInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.AnswerQuestion(r.Context(), identity, questionID, body)
		s.respond(w, payload, err)

	case len(rest) == 1 && rest[0] == "vote" && r.Method == http.MethodPost:
		payload, err := s.service.Vote(r.Context(), identity, questionID)
		s.respond(w, payload, err)

	case len(rest) == 1 && rest[0] == "vote" && r.Method == http.MethodDelete:
		payload, err := s.service.Unvote(r.Context(), identity, questionID)
		s.respond(w, payload, err)

	case len(rest) == 1 && rest[0] == "endorse" && r.Method == http.MethodPost:
		var body EndorseInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.Endorse(r.Context(), identity, questionID, body)
		s.respond(w, payload, err)

	case len(rest) == 1 && rest[0] == "endorse" && r.Method == http.MethodDelete:
		var body EndorseInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.Unendorse(r.Context(), identity, questionID, body)
		s.respond(w, payload, err)

	case len(rest) == 1 && rest[0] == "report" && r.Method == http.MethodPost:
		var body ReportInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.Report(r.Context(), identity, questionID, body)
		s.respond(w, payload, err)

	case len(rest) == 1 && rest[0] == "notes" && r.Method == http.MethodGet:
		payload, err := s.service.ListNotes(r.Context(), identity, questionID)
		s.respond(w, payload, err)

	case len(rest) == 1 && rest[0] == "notes" && r.Method == http.MethodPost:
		var body NoteInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.AddNote(r.Context(), identity, questionID, body)
		if err == nil {
			writeJSON(w, http.StatusCreated, payload)
			return
		}
		s.respond(w, payload, err)

	case len(rest) == 1 && rest[0] == "history" && r.Method == http.MethodGet:
		payload, err := s.service.History(r.Context(), questionID)
		s.respond(w, payload, err)

	case len(rest) == 1 && rest[0] == "amendments" && r.Method == http.MethodGet:
		payload, err := s.service.ListAmendments(r.Context(), questionID)
		s.respond(w, payload, err)

	case len(rest) == 1 && rest[0] == "amendments" && r.Method == http.MethodPost:
		var body CreateAmendmentInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.CreateAmendment(r.Context(), identity, questionID, body)
		if err == nil {
			writeJSON(w, http.StatusCreated, payload)
			return
		}
		s.respond(w, payload, err)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleAmendment(w http.ResponseWriter, r *http.Request, identity Identity, amendmentID int64, action string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	var payload map[string]any
	var err error
	switch action {
	case "accept":
		payload, err = s.service.AcceptAmendment(r.Context(), identity, amendmentID)
	case "reject":
		payload, err = s.service.RejectAmendment(r.Context(), identity, amendmentID)
	case "withdraw":
		payload, err = s.service.WithdrawAmendment(r.Context(), identity, amendmentID)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	s.respond(w, payload, err)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := search.Query{
		Text:             strings.TrimSpace(r.URL.Query().Get("q")),
		State:            strings.TrimSpace(r.URL.Query().Get("state")),
		IncludeWithdrawn: queryFlag(r, "include_withdrawn"),
		Limit:            20,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("component")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "component must be an integer", nil)
			return
		}
		query.ComponentID = id
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "category must be an integer", nil)
			return
		}
		query.CategoryID = id
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		query.Limit = limit
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return
		}
		query.Offset = offset
	}
	writeJSON(w, http.StatusOK, s.service.Search(r.Context(), query))
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, identity Identity, componentID int64) {
	format := strings.TrimSpace(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}
	result, err := s.service.Export(r.Context(), identity, componentID, format, queryFlag(r, "include_withdrawn"))
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

// identityFromHeader resolves the gateway identity header. A header naming
// an unknown user is rejected so a stale gateway cannot fabricate actors.
func (s *HTTPServer) identityFromHeader(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	email := strings.TrimSpace(r.Header.Get(identityHeader))
	if email == "" {
		return Identity{}, true
	}
	identity, err := s.service.IdentityFromEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unknown user", nil)
			return Identity{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Identity lookup failed", nil)
		return Identity{}, false
	}
	return identity, true
}

func (s *HTTPServer) respond(w http.ResponseWriter, payload any, err error) {
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func queryFlag(r *http.Request, name string) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(name))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
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

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
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

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, "+identityHeader)
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
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

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
