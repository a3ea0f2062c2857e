package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"staffdesk/internal/app"
	"staffdesk/internal/ratelimit"
	"staffdesk/internal/store"
	"staffdesk/internal/util"
	"staffdesk/pkg/domain"
)

const maxBodyBytes = 1 << 20
const maxImageBytes = 10 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App          *app.App
	LoginLimiter *ratelimit.FixedWindowLimiter
}

// Server exposes the HR REST endpoints.
type Server struct {
	app          *app.App
	loginLimiter *ratelimit.FixedWindowLimiter
	mux          *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:          cfg.App,
		loginLimiter: cfg.LoginLimiter,
		mux:          http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/auth/token", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)

	s.mux.Handle("/api/employees", s.authenticated(s.handleEmployees))
	s.mux.Handle("/api/employees/", s.authenticated(s.handleEmployeeByID))
	s.mux.Handle("/api/positions", s.authenticated(s.handlePositions))
	s.mux.Handle("/api/positions/", s.authenticated(s.handlePositionByID))
	s.mux.Handle("/api/departments", s.authenticated(s.handleDepartments))
	s.mux.Handle("/api/departments/", s.authenticated(s.handleDepartmentByID))
	s.mux.Handle("/api/statuses", s.authenticated(s.handleStatuses))
	s.mux.Handle("/api/statuses/", s.authenticated(s.handleStatusByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	n, err := s.app.EmployeeCount(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "employees": n})
}

type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, ok, err := s.app.UserFromToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

// --- auth ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.loginLimiter != nil && !s.loginLimiter.Allow(util.ClientIP(r)) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}
	user, token, err := s.app.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, app.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":   token,
		"user_id": user.ID,
		"email":   user.Email,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.app.Logout(token); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- employees ---

func (s *Server) handleEmployees(w http.ResponseWriter, r *http.Request, _ domain.User) {
	switch r.Method {
	case http.MethodGet:
		filter, ok := employeeFilter(w, r)
		if !ok {
			return
		}
		employees, err := s.app.ListEmployees(r.Context(), filter)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, employees)
	case http.MethodPost:
		payload, ok := decodePayload(w, r)
		if !ok {
			return
		}
		emp, err := s.app.CreateEmployee(r.Context(), payload)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, emp)
	default:
		methodNotAllowed(w)
	}
}

// /api/employees/{id} or /api/employees/{id}/image
func (s *Server) handleEmployeeByID(w http.ResponseWriter, r *http.Request, _ domain.User) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/employees/")
	parts := strings.SplitN(rest, "/", 2)
	id, ok := parseID(parts[0])
	if !ok {
		notFound(w)
		return
	}
	if len(parts) == 2 && parts[1] != "" {
		if parts[1] != "image" {
			notFound(w)
			return
		}
		s.handleEmployeeImage(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		emp, err := s.app.GetEmployee(r.Context(), id)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, emp)
	case http.MethodPut, http.MethodPatch:
		payload, ok := decodePayload(w, r)
		if !ok {
			return
		}
		emp, err := s.app.UpdateEmployee(r.Context(), id, payload, r.Method == http.MethodPatch)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, emp)
	case http.MethodDelete:
		if err := s.app.DeleteEmployee(r.Context(), id); err != nil {
			s.writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleEmployeeImage(w http.ResponseWriter, r *http.Request, id uint) {
	switch r.Method {
	case http.MethodGet:
		url, err := s.app.EmployeeImageURL(r.Context(), id)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
		if err := r.ParseMultipartForm(maxImageBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			writeError(w, http.StatusBadRequest, "image is required (field: image)")
			return
		}
		defer file.Close()
		contentType := header.Header.Get("Content-Type")
		meta, err := s.app.UploadEmployeeImage(r.Context(), id, header.Filename, contentType, file, header.Size)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, meta)
	default:
		methodNotAllowed(w)
	}
}

func employeeFilter(w http.ResponseWriter, r *http.Request) (store.EmployeeFilter, bool) {
	var filter store.EmployeeFilter
	q := r.URL.Query()
	for param, dst := range map[string]**uint{
		"position":   &filter.PositionID,
		"department": &filter.DepartmentID,
		"status":     &filter.StatusID,
	} {
		raw := strings.TrimSpace(q.Get(param))
		if raw == "" {
			continue
		}
		id64, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+param+" filter")
			return filter, false
		}
		id := uint(id64)
		*dst = &id
	}
	filter.Search = strings.TrimSpace(q.Get("search"))
	return filter, true
}

// --- positions ---

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request, _ domain.User) {
	switch r.Method {
	case http.MethodGet:
		positions, err := s.app.ListPositions(r.Context())
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, positions)
	case http.MethodPost:
		payload, ok := decodePayload(w, r)
		if !ok {
			return
		}
		p, err := s.app.CreatePosition(r.Context(), payload)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handlePositionByID(w http.ResponseWriter, r *http.Request, _ domain.User) {
	id, ok := parseID(strings.TrimPrefix(r.URL.Path, "/api/positions/"))
	if !ok {
		notFound(w)
		return
	}
	switch r.Method {
	case http.MethodGet:
		p, err := s.app.GetPosition(r.Context(), id)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodPut, http.MethodPatch:
		payload, ok := decodePayload(w, r)
		if !ok {
			return
		}
		p, err := s.app.UpdatePosition(r.Context(), id, payload, r.Method == http.MethodPatch)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodDelete:
		if err := s.app.DeletePosition(r.Context(), id); err != nil {
			s.writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// --- departments ---

func (s *Server) handleDepartments(w http.ResponseWriter, r *http.Request, _ domain.User) {
	switch r.Method {
	case http.MethodGet:
		departments, err := s.app.ListDepartments(r.Context())
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, departments)
	case http.MethodPost:
		payload, ok := decodePayload(w, r)
		if !ok {
			return
		}
		d, err := s.app.CreateDepartment(r.Context(), payload)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleDepartmentByID(w http.ResponseWriter, r *http.Request, _ domain.User) {
	id, ok := parseID(strings.TrimPrefix(r.URL.Path, "/api/departments/"))
	if !ok {
		notFound(w)
		return
	}
	switch r.Method {
	case http.MethodGet:
		d, err := s.app.GetDepartment(r.Context(), id)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	case http.MethodPut, http.MethodPatch:
		payload, ok := decodePayload(w, r)
		if !ok {
			return
		}
		d, err := s.app.UpdateDepartment(r.Context(), id, payload, r.Method == http.MethodPatch)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	case http.MethodDelete:
		if err := s.app.DeleteDepartment(r.Context(), id); err != nil {
			s.writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// --- statuses ---

func (s *Server) handleStatuses(w http.ResponseWriter, r *http.Request, _ domain.User) {
	switch r.Method {
	case http.MethodGet:
		statuses, err := s.app.ListStatuses(r.Context())
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statuses)
	case http.MethodPost:
		payload, ok := decodePayload(w, r)
		if !ok {
			return
		}
		st, err := s.app.CreateStatus(r.Context(), payload)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, st)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleStatusByID(w http.ResponseWriter, r *http.Request, _ domain.User) {
	id, ok := parseID(strings.TrimPrefix(r.URL.Path, "/api/statuses/"))
	if !ok {
		notFound(w)
		return
	}
	switch r.Method {
	case http.MethodGet:
		st, err := s.app.GetStatus(r.Context(), id)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	case http.MethodPut, http.MethodPatch:
		payload, ok := decodePayload(w, r)
		if !ok {
			return
		}
		st, err := s.app.UpdateStatus(r.Context(), id, payload, r.Method == http.MethodPatch)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	case http.MethodDelete:
		if err := s.app.DeleteStatus(r.Context(), id); err != nil {
			s.writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// --- helpers ---

// writeAppError maps application errors onto the wire format. Validation
// failures keep their nested shape, e.g.
// {"position": {"salary": "This field is required."}} or
// {"department": "Invalid ID"}.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	var valErr *app.ValidationError
	if errors.As(err, &valErr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{valErr.Entity: valErr.Fields})
		return
	}
	var refErr *app.InvalidReferenceError
	if errors.As(err, &refErr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{refErr.Entity: "Invalid ID"})
		return
	}
	var fieldErrs app.FieldErrors
	if errors.As(err, &fieldErrs) {
		writeJSON(w, http.StatusBadRequest, fieldErrs)
		return
	}
	switch {
	case errors.Is(err, app.ErrNotFound):
		notFound(w)
	case errors.Is(err, app.ErrImageStorageNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "image storage not configured")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodePayload(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var payload map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return payload, true
}

func parseID(raw string) (uint, bool) {
	raw = strings.TrimSuffix(raw, "/")
	if raw == "" {
		return 0, false
	}
	id64, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id64), true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCode(status),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "HR_INVALID_REQUEST"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusNotFound:
		return "HR_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return "AUTH_RATE_LIMITED"
	case http.StatusServiceUnavailable:
		return "SYSTEM_UNAVAILABLE"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
