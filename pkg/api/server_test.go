package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/MiteyIronPaw/selfoss/pkg/api/auth"
	"github.com/MiteyIronPaw/selfoss/pkg/sources"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts/params"
	"github.com/MiteyIronPaw/selfoss/pkg/storage/memory"
)

type stubSpout struct {
	loaded bool
}

func (s *stubSpout) Load(context.Context, params.Values) error {
	s.loaded = true
	return nil
}

func (s *stubSpout) Items() []spouts.Item {
	if !s.loaded {
		return []spouts.Item{}
	}
	return []spouts.Item{{ID: "a", Title: "hello"}}
}

func (s *stubSpout) Title() string   { return "Stub Source" }
func (s *stubSpout) HTMLURL() string { return "https://example.com/" }
func (s *stubSpout) Destroy()        {}

type testServer struct {
	handler  http.Handler
	sessions *auth.SessionAuthProvider
	store    *memory.SourceStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zerolog.Nop()

	registry := spouts.NewRegistry(&logger)
	desc := spouts.Descriptor{
		ID:   "test/stub",
		Name: "Stub",
		Params: []params.Param{
			{Name: "url", Type: params.TypeURL, Required: true, Validation: []params.Validator{params.ValidatorNonEmpty}},
		},
	}
	if err := registry.Register(desc, func() spouts.Spout { return &stubSpout{} }); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	store := memory.NewSourceStore()
	orchestrator := sources.NewOrchestrator(&logger, registry, store, memory.NewItemStore(), nil, &sources.Config{
		MaxConcurrentFetches: 2,
		FetchTimeout:         time.Second,
		ReloadInterval:       time.Hour,
	})

	authConfig := &auth.Config{Username: "admin", Password: "pass", SessionTTL: time.Hour}
	sessions := auth.NewSessionAuthProvider("secret", time.Hour)

	middleware := auth.NewRouteAuthMiddleware(&auth.AuthConfig{Provider: sessions, Required: true})
	middleware.SetRouteAuth("POST /login", auth.AuthConfig{})

	server := NewServer(
		&logger,
		&Config{Host: "localhost", Port: 0, CORSOrigin: "*"},
		authConfig,
		middleware,
		sessions,
		registry,
		orchestrator,
		store,
		nil,
	)

	return &testServer{
		handler:  server.http.Handler,
		sessions: sessions,
		store:    store,
	}
}

func (ts *testServer) request(method, path, body string, authenticated bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authenticated {
		req.AddCookie(ts.sessions.Issue("admin", time.Now()))
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodPost, "/login", `{"username":"admin","password":"pass"}`, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d", rec.Code, http.StatusOK)
	}

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || sessionCookie.Value == "" {
		t.Fatalf("login response carries no session cookie")
	}

	rec = ts.request(http.MethodPost, "/login", `{"username":"admin","password":"wrong"}`, false)
	if rec.Code != http.StatusForbidden {
		t.Errorf("bad credentials status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestSessionRequired(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodGet, "/sources", "", false)
	if rec.Code != http.StatusForbidden {
		t.Errorf("unauthenticated status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	rec = ts.request(http.MethodGet, "/sources", "", true)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestListSpouts(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(http.MethodGet, "/spouts", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var descs []spouts.Descriptor
	if err := json.Unmarshal(rec.Body.Bytes(), &descs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(descs) != 1 || descs[0].ID != "test/stub" {
		t.Errorf("spouts = %+v, want the stub descriptor", descs)
	}
	if len(descs[0].Params) != 1 || descs[0].Params[0].Name != "url" {
		t.Errorf("descriptor params = %+v, want the url parameter", descs[0].Params)
	}
}

func TestCreateSource(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "valid",
			body:       `{"spout":"test/stub","params":{"url":"https://example.com"}}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing required parameter",
			body:       `{"spout":"test/stub","params":{}}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown spout",
			body:       `{"spout":"nope/nope","params":{}}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.request(http.MethodPost, "/sources", tt.body, true)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body: %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusCreated {
				if got := rec.Header().Get("Content-Type"); got != "application/json" {
					t.Errorf("Content-Type = %q, want application/json", got)
				}
			}
		})
	}

	srcs, err := ts.store.List(context.Background())
	if err != nil {
		t.Fatalf("store.List() error = %v", err)
	}
	if len(srcs) != 1 {
		t.Errorf("store holds %d sources, want only the valid one", len(srcs))
	}
}

func TestQuickAddSource(t *testing.T) {
	ts := newTestServer(t)

	body := `{"spout":"test/stub","params":{"url":"https://example.com/feed"}}`
	rec := ts.request(http.MethodPost, "/sources/quickadd", body, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var draft sources.Source
	if err := json.Unmarshal(rec.Body.Bytes(), &draft); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !draft.IsDraft() {
		t.Errorf("quick add id = %q, want a draft id", draft.ID)
	}
	if draft.Params["url"] != "https://example.com/feed" {
		t.Errorf("draft params = %v, want the preset url", draft.Params)
	}

	srcs, _ := ts.store.List(context.Background())
	if len(srcs) != 0 {
		t.Errorf("quick add persisted %d sources, want none", len(srcs))
	}
}

func TestDeleteSource(t *testing.T) {
	ts := newTestServer(t)

	src := &sources.Source{ID: "s1", Spout: "test/stub", Params: map[string]string{"url": "u"}}
	if err := ts.store.Upsert(context.Background(), src); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	rec := ts.request(http.MethodDelete, "/sources/s1", "", true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	srcs, _ := ts.store.List(context.Background())
	if len(srcs) != 0 {
		t.Errorf("store holds %d sources after delete, want 0", len(srcs))
	}
}

func TestReloadSources(t *testing.T) {
	ts := newTestServer(t)

	src := &sources.Source{ID: "s1", Spout: "test/stub", Params: map[string]string{"url": "https://example.com"}}
	if err := ts.store.Upsert(context.Background(), src); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	rec := ts.request(http.MethodPost, "/sources/reload", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	var updated []*sources.Source
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(updated) != 1 {
		t.Fatalf("reload returned %d sources, want 1", len(updated))
	}
	if updated[0].Title != "Stub Source" {
		t.Errorf("Title = %q, want %q", updated[0].Title, "Stub Source")
	}
	if updated[0].LastFetch == nil {
		t.Errorf("LastFetch = nil after successful reload")
	}
}
