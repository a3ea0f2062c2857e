package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"staffdesk/internal/app"
	"staffdesk/internal/ratelimit"
	"staffdesk/internal/store"
)

func newTestServer(t *testing.T) (http.Handler, string) {
	t.Helper()
	st := store.NewMemoryStore()
	sessions, err := store.NewJWTSessionStore("test-secret", time.Hour, store.NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	a := app.New(st, sessions, nil, nil)
	if err := a.EnsureBootstrapUser(context.Background(), "admin", "admin@example.com", "s3cret"); err != nil {
		t.Fatalf("bootstrap user: %v", err)
	}
	handler := New(Config{App: a}).Router()

	rec := doJSON(t, handler, http.MethodPost, "/api/auth/token", "", map[string]any{
		"username": "admin",
		"password": "s3cret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}
	var loginResp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &loginResp)
	return handler, loginResp.Token
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	handler, _ := newTestServer(t)
	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	handler, _ := newTestServer(t)
	for _, path := range []string{"/api/employees", "/api/positions", "/api/departments", "/api/statuses"} {
		rec := doJSON(t, handler, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status %d, want 401", path, rec.Code)
		}
	}
	rec := doJSON(t, handler, http.MethodGet, "/api/employees", "bogus-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bogus token: status %d, want 401", rec.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/auth/token", "", map[string]any{"username": "admin"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing password: status %d", rec.Code)
	}
	var errResp struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &errResp)
	if errResp.Error != "Username and password are required" {
		t.Fatalf("error = %q", errResp.Error)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/auth/token", "", map[string]any{
		"username": "admin",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad credentials: status %d", rec.Code)
	}
	decodeBody(t, rec, &errResp)
	if errResp.Error != "Unable to login with provided credentials." {
		t.Fatalf("error = %q", errResp.Error)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	handler, token := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/auth/logout", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: status %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/employees", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token: status %d, want 401", rec.Code)
	}
}

func TestEmployeeLifecycle(t *testing.T) {
	handler, token := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/employees", token, map[string]any{
		"name":       "Ada Lovelace",
		"address":    "12 Analytical Way",
		"is_manager": true,
		"position":   map[string]any{"name": "Engineer", "salary": "85000.50"},
		"department": map[string]any{"name": "R&D"},
		"status":     map[string]any{"name": "Active"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID       uint `json:"id"`
		Position *struct {
			ID     uint   `json:"id"`
			Name   string `json:"name"`
			Salary string `json:"salary"`
		} `json:"position"`
		Department *struct {
			ID      uint  `json:"id"`
			Manager *uint `json:"manager"`
		} `json:"department"`
		Status *struct {
			Name string `json:"name"`
		} `json:"status"`
	}
	decodeBody(t, rec, &created)
	if created.Position == nil || created.Position.Salary != "85000.50" {
		t.Fatalf("salary rendering wrong: %s", rec.Body.String())
	}
	if created.Department == nil || created.Department.Manager != nil {
		t.Fatalf("department shape wrong: %s", rec.Body.String())
	}
	if created.Status == nil || created.Status.Name != "Active" {
		t.Fatalf("status shape wrong: %s", rec.Body.String())
	}

	path := fmt.Sprintf("/api/employees/%d", created.ID)
	rec = doJSON(t, handler, http.MethodGet, path, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}

	// patch one scalar; the relations survive
	rec = doJSON(t, handler, http.MethodPatch, path, token, map[string]any{"address": "1 New St"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: status %d body %s", rec.Code, rec.Body.String())
	}
	var patched struct {
		Address  string          `json:"address"`
		Position json.RawMessage `json:"position"`
	}
	decodeBody(t, rec, &patched)
	if patched.Address != "1 New St" || string(patched.Position) == "null" {
		t.Fatalf("patch result wrong: %s", rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodDelete, path, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, path, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d", rec.Code)
	}
}

func TestEmployeeValidationShapes(t *testing.T) {
	handler, token := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/employees", token, map[string]any{
		"name":     "Ada",
		"address":  "1 Main St",
		"position": map[string]any{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	var nested map[string]map[string]string
	decodeBody(t, rec, &nested)
	if nested["position"]["name"] != "This field is required." {
		t.Fatalf("body = %s", rec.Body.String())
	}
	if nested["position"]["salary"] != "This field is required." {
		t.Fatalf("body = %s", rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/employees", token, map[string]any{
		"name":     "Ada",
		"address":  "1 Main St",
		"position": 999,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	var flat map[string]string
	decodeBody(t, rec, &flat)
	if flat["position"] != "Invalid ID" {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestEmployeeFilters(t *testing.T) {
	handler, token := newTestServer(t)

	for _, e := range []map[string]any{
		{"name": "Ada", "address": "1 Main St", "position": map[string]any{"name": "Engineer", "salary": "60000"}},
		{"name": "Grace", "address": "2 Side St", "position": map[string]any{"name": "Admiral", "salary": "90000"}},
	} {
		rec := doJSON(t, handler, http.MethodPost, "/api/employees", token, e)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
		}
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/employees?search=grace", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var listed []struct {
		Name string `json:"name"`
	}
	decodeBody(t, rec, &listed)
	if len(listed) != 1 || listed[0].Name != "Grace" {
		t.Fatalf("search result wrong: %s", rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/employees?position=abc", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad filter: status %d", rec.Code)
	}
}

func TestStatusCRUD(t *testing.T) {
	handler, token := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/statuses", token, map[string]any{"name": "Active"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d", rec.Code)
	}
	var created struct {
		ID uint `json:"id"`
	}
	decodeBody(t, rec, &created)

	rec = doJSON(t, handler, http.MethodPost, "/api/statuses", token, map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid create: status %d", rec.Code)
	}
	var fieldErrs map[string]string
	decodeBody(t, rec, &fieldErrs)
	if fieldErrs["name"] != "This field is required." {
		t.Fatalf("body = %s", rec.Body.String())
	}

	path := fmt.Sprintf("/api/statuses/%d", created.ID)
	rec = doJSON(t, handler, http.MethodPut, path, token, map[string]any{"name": "Inactive"})
	if rec.Code != http.StatusOK {
		t.Fatalf("put: status %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodDelete, path, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodDelete, path, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("double delete: status %d", rec.Code)
	}
}

func TestImageEndpointsWithoutStorage(t *testing.T) {
	handler, token := newTestServer(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/employees", token, map[string]any{
		"name":    "Ada",
		"address": "1 Main St",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d", rec.Code)
	}
	var created struct {
		ID uint `json:"id"`
	}
	decodeBody(t, rec, &created)

	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/employees/%d/image", created.ID), token, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("image url without storage: status %d", rec.Code)
	}
}

func TestLoginRateLimit(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(redisSrv.Addr(), "", "test:login", 2, time.Minute)
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}
	st := store.NewMemoryStore()
	sessions, err := store.NewJWTSessionStore("test-secret", time.Hour, store.NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	handler := New(Config{App: app.New(st, sessions, nil, nil), LoginLimiter: limiter}).Router()

	body := map[string]any{"username": "admin", "password": "wrong"}
	for i := 0; i < 2; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/api/auth/token", "", body)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status %d", i, rec.Code)
		}
	}
	rec := doJSON(t, handler, http.MethodPost, "/api/auth/token", "", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("limited attempt: status %d", rec.Code)
	}
}
