package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inkwell/api/internal/auth"
	"inkwell/api/internal/authoring"
	"inkwell/api/internal/docstore"
	"inkwell/api/internal/export"
	"inkwell/api/internal/fingerprint"
	"inkwell/api/internal/identity"
	"inkwell/api/internal/ledger"
	"inkwell/api/internal/richtext"
	"inkwell/api/internal/search"
)

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
			"gateway": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["gateway"] = map[string]any{"status": "error", "error": err.Error()}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		user, err := s.service.UserFromToken(token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"userId":        user.ID,
			"userName":      user.Name,
			"role":          user.Role,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		q := search.Query{
			Text:           r.URL.Query().Get("q"),
			FilterCategory: r.URL.Query().Get("category"),
			Limit:          queryInt(r, "limit"),
			Offset:         queryInt(r, "offset"),
		}
		writeJSON(w, http.StatusOK, s.service.Search(r.Context(), q))
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "posts":
		s.handlePosts(w, r, parts[2:])
	case "comments":
		s.handleComments(w, r, parts[2:])
	case "polls":
		s.handlePolls(w, r, parts[2:])
	case "draft":
		s.handleDraft(w, r, parts[2:])
	case "saved":
		user, ok := s.requireUser(w, r)
		if !ok {
			return
		}
		views, err := s.service.ListSaved(r.Context(), user)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"posts": views})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handlePosts(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		views, err := s.service.ListPosts(r.Context(), r.URL.Query().Get("category"))
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"posts": views})

	case len(rest) == 0 && r.Method == http.MethodPost:
		user, ok := s.requireUser(w, r)
		if !ok {
			return
		}
		var in PostInput
		if err := decodeBody(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.CreatePost(r.Context(), user, in)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)

	case len(rest) == 1 && r.Method == http.MethodGet:
		view, err := s.service.GetPost(r.Context(), rest[0])
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(rest) == 1 && r.Method == http.MethodPut:
		user, ok := s.requireUser(w, r)
		if !ok {
			return
		}
		var in PostInput
		if err := decodeBody(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.UpdatePost(r.Context(), user, rest[0], in)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(rest) == 1 && r.Method == http.MethodDelete:
		user, ok := s.requireUser(w, r)
		if !ok {
			return
		}
		if err := s.service.DeletePost(r.Context(), user, rest[0]); err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})

	case len(rest) == 2 && rest[1] == "comments" && r.Method == http.MethodGet:
		views, err := s.service.ListComments(r.Context(), rest[0])
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"comments": views})

	case len(rest) == 2 && rest[1] == "comments" && r.Method == http.MethodPost:
		user, ok := s.requireUser(w, r)
		if !ok {
			return
		}
		var in struct {
			Author  string `json:"author"`
			Content string `json:"content"`
		}
		if err := decodeBody(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.AddComment(r.Context(), user, rest[0], in.Author, in.Content)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)

	case len(rest) == 2 && rest[1] == "view" && r.Method == http.MethodPost:
		counted, err := s.service.RecordView(r.Context(), rest[0], fingerprint.FromRequest(r))
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"counted": counted})

	case len(rest) == 2 && rest[1] == "bookmark" && r.Method == http.MethodPost:
		user, ok := s.requireUser(w, r)
		if !ok {
			return
		}
		bookmarked, err := s.service.ToggleBookmark(r.Context(), user, rest[0])
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookmarked": bookmarked})

	case len(rest) == 2 && rest[1] == "export" && r.Method == http.MethodGet:
		format := export.Format(r.URL.Query().Get("format"))
		if format == "" {
			format = export.FormatPDF
		}
		result, err := s.service.Export(r.Context(), export.Request{
			PostID:          rest[0],
			Format:          format,
			IncludeComments: r.URL.Query().Get("comments") == "1",
		})
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleComments(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPut:
		var in struct {
			Content string `json:"content"`
		}
		if err := decodeBody(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.EditComment(r.Context(), user, rest[0], in.Content)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case http.MethodDelete:
		if err := s.service.DeleteComment(r.Context(), user, rest[0]); err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handlePolls(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodPost:
		user, ok := s.requireUser(w, r)
		if !ok {
			return
		}
		var in PollInput
		if err := decodeBody(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.CreatePoll(r.Context(), user, in)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)

	case len(rest) == 1 && r.Method == http.MethodGet:
		view, err := s.service.GetPoll(r.Context(), rest[0], fingerprint.FromRequest(r))
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(rest) == 2 && rest[1] == "vote" && r.Method == http.MethodPost:
		var in struct {
			OptionID string `json:"optionId"`
		}
		if err := decodeBody(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.CastVote(r.Context(), rest[0], in.OptionID, fingerprint.FromRequest(r))
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleDraft(w http.ResponseWriter, r *http.Request, rest []string) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		view, err := s.service.Draft(user)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(rest) == 0 && r.Method == http.MethodPut:
		var in DraftInput
		if err := decodeBody(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.UpdateDraft(user, in)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(rest) == 0 && r.Method == http.MethodDelete:
		if err := s.service.CancelDraft(user); err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})

	case len(rest) == 1 && rest[0] == "submit" && r.Method == http.MethodPost:
		view, err := s.service.SubmitDraft(r.Context(), user)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)

	case len(rest) == 1 && rest[0] == "style" && r.Method == http.MethodPost:
		var in StyleInput
		if err := decodeBody(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.ToggleDraftStyle(user, in)
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(rest) == 2 && rest[0] == "edit" && r.Method == http.MethodPost:
		view, err := s.service.EditDraft(r.Context(), user, rest[1])
		if err != nil {
			s.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// requireUser authenticates the request or writes a 401.
func (s *HTTPServer) requireUser(w http.ResponseWriter, r *http.Request) (identity.User, bool) {
	if user, ok := identity.FromContext(r.Context()); ok {
		return user, true
	}
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return identity.User{}, false
	}
	user, err := s.service.UserFromToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return identity.User{}, false
	}
	return user, true
}

func (s *HTTPServer) writeMapped(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var validationErr *ledger.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusUnprocessableEntity, "VALIDATION_FAILED",
			validationErr.Result.Message, map[string]any{"kind": validationErr.Result.Kind}
	}
	var formatErr *richtext.FormatError
	if errors.As(err, &formatErr) {
		return http.StatusBadRequest, "INVALID_CONTENT", formatErr.Error(), nil
	}
	var networkErr *docstore.NetworkError
	if errors.As(err, &networkErr) {
		return http.StatusBadGateway, "UPSTREAM_ERROR", "Document store unavailable", nil
	}
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, docstore.ErrPermission), errors.Is(err, ledger.ErrNotAllowed):
		return http.StatusForbidden, "FORBIDDEN", "Forbidden", nil
	case errors.Is(err, ledger.ErrAlreadyVoted):
		return http.StatusConflict, "ALREADY_VOTED", "You have already voted!", nil
	case errors.Is(err, ledger.ErrUnknownOption):
		return http.StatusBadRequest, "UNKNOWN_OPTION", "Unknown poll option", nil
	case errors.Is(err, authoring.ErrNotEditing):
		return http.StatusConflict, "NO_DRAFT", "No draft in progress", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export dependencies missing", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		if token := bearerToken(r); token != "" {
			if user, err := s.service.UserFromToken(token); err == nil {
				ctx = identity.WithUser(ctx, user)
			}
		}
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

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}
