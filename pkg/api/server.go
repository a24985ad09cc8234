package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MiteyIronPaw/selfoss/pkg/api/auth"
	"github.com/MiteyIronPaw/selfoss/pkg/sources"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts/params"
)

// Server exposes the spout catalog and source configuration over HTTP.
type Server struct {
	registry     *spouts.Registry
	orchestrator *sources.Orchestrator
	store        sources.Store
	sessions     *auth.SessionAuthProvider
	authConfig   *auth.Config
	logger       *zerolog.Logger
	http         http.Server
}

func NewServer(
	logger *zerolog.Logger,
	config *Config,
	authConfig *auth.Config,
	authMiddleware *auth.RouteAuthMiddleware,
	sessions *auth.SessionAuthProvider,
	registry *spouts.Registry,
	orchestrator *sources.Orchestrator,
	store sources.Store,
	metricsHandler http.Handler,
) *Server {
	mux := http.NewServeMux()

	server := &Server{
		logger:       logger,
		registry:     registry,
		orchestrator: orchestrator,
		store:        store,
		sessions:     sessions,
		authConfig:   authConfig,
		http: http.Server{
			Addr:    fmt.Sprintf("%s:%d", config.Host, config.Port),
			Handler: authMiddleware.Middleware(corsMiddleware(mux, config.CORSOrigin)),
		},
	}

	mux.HandleFunc("POST /login", server.Login)
	mux.HandleFunc("POST /logout", server.Logout)
	mux.HandleFunc("GET /spouts", server.ListSpouts)
	mux.HandleFunc("GET /spouts/presets", server.SearchPresets)
	mux.HandleFunc("GET /sources", server.ListSources)
	mux.HandleFunc("POST /sources", server.CreateSource)
	mux.HandleFunc("PUT /sources/{id}", server.UpsertSource)
	mux.HandleFunc("POST /sources/quickadd", server.QuickAddSource)
	mux.HandleFunc("POST /sources/reload", server.ReloadSources)
	mux.HandleFunc("DELETE /sources/{id}", server.DeleteSource)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	return server
}

func corsMiddleware(next http.Handler, originConfig string) http.Handler {
	origins := strings.Split(originConfig, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestOrigin := r.Header.Get("Origin")

		if len(origins) == 1 && origins[0] == "*" {
			// Allow all origins
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if requestOrigin != "" && slices.Contains(origins, requestOrigin) {
			// CORS doesn't support multiple origins,
			// so we either set the origin in the header or not at all.
			w.Header().Set("Access-Control-Allow-Origin", requestOrigin)
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	return s.http.Close()
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, err, "deserialize login request")
		return
	}

	// An unset password means login is not configured at all.
	if s.authConfig.Password == "" {
		http.Error(w, "login disabled", http.StatusForbidden)
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.authConfig.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.authConfig.Password)) == 1
	if !userOK || !passOK {
		http.Error(w, "invalid credentials", http.StatusForbidden)
		return
	}

	http.SetCookie(w, s.sessions.Issue(req.Username, time.Now()))
	s.writeJSON(w, map[string]bool{"success": true})
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, s.sessions.Expire())
	s.writeJSON(w, map[string]bool{"success": true})
}

// ListSpouts returns the spout catalog, optionally narrowed by a
// fuzzy search query.
func (s *Server) ListSpouts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("search")

	var descs []spouts.Descriptor
	if query == "" {
		descs = s.registry.Describe()
	} else {
		descs = s.registry.Search(query)
	}

	s.writeJSON(w, descs)
}

func (s *Server) SearchPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.registry.SearchPresets(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		s.internalError(w, err, "search source presets")
		return
	}

	s.writeJSON(w, presets)
}

func (s *Server) ListSources(w http.ResponseWriter, r *http.Request) {
	srcs, err := s.store.List(r.Context())
	if err != nil {
		s.internalError(w, err, "list sources")
		return
	}

	s.writeJSON(w, srcs)
}

type createSourceRequest struct {
	Spout  string            `json:"spout"`
	Params map[string]string `json:"params"`
}

// CreateSource validates the submitted parameters against the spout's
// schema and persists the source. Parameter errors come back as 400 with
// the offending parameter named.
func (s *Server) CreateSource(w http.ResponseWriter, r *http.Request) {
	var req createSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, err, "deserialize source")
		return
	}

	desc, ok := s.registry.Lookup(req.Spout)
	if !ok {
		s.badRequest(w, fmt.Errorf("unknown spout: %s", req.Spout), "lookup spout")
		return
	}

	resolved, err := params.Resolve(desc.Params, req.Params)
	if err != nil {
		s.badRequest(w, err, "validate source params")
		return
	}

	src := &sources.Source{
		ID:     uuid.NewString(),
		Spout:  req.Spout,
		Params: resolved,
	}
	if err := s.store.Upsert(r.Context(), src); err != nil {
		s.internalError(w, err, "persist source")
		return
	}

	s.writeJSONStatus(w, http.StatusCreated, src)
}

// UpsertSource writes a full source record under the id in the path,
// creating or replacing it. This is the write half of the remote
// configuration-store surface; fetch metadata like lastFetch and
// lastError round-trips unchanged.
func (s *Server) UpsertSource(w http.ResponseWriter, r *http.Request) {
	var src sources.Source
	if err := json.NewDecoder(r.Body).Decode(&src); err != nil {
		s.badRequest(w, err, "deserialize source")
		return
	}
	src.ID = r.PathValue("id")

	if _, ok := s.registry.Lookup(src.Spout); !ok {
		s.badRequest(w, fmt.Errorf("unknown spout: %s", src.Spout), "lookup spout")
		return
	}

	if err := s.store.Upsert(r.Context(), &src); err != nil {
		s.internalError(w, err, "persist source")
		return
	}

	s.writeJSON(w, &src)
}

// QuickAddSource builds a draft source from a prefilled preset without
// touching the store, mirroring quick-add links in the UI.
func (s *Server) QuickAddSource(w http.ResponseWriter, r *http.Request) {
	var req createSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, err, "deserialize preset")
		return
	}

	if _, ok := s.registry.Lookup(req.Spout); !ok {
		s.badRequest(w, fmt.Errorf("unknown spout: %s", req.Spout), "lookup spout")
		return
	}

	s.writeJSON(w, s.orchestrator.AddDraft(req.Spout, req.Params))
}

func (s *Server) ReloadSources(w http.ResponseWriter, r *http.Request) {
	srcs, err := s.orchestrator.ReloadAll(r.Context())
	if err != nil {
		if errors.Is(err, sources.ErrAuthExpired) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		s.internalError(w, err, "reload sources")
		return
	}

	s.writeJSON(w, srcs)
}

func (s *Server) DeleteSource(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.internalError(w, err, "delete source")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	s.writeJSONStatus(w, http.StatusOK, v)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, status int, v any) {
	// Content-Type must be in place before the status line goes out;
	// headers set afterwards are discarded.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("response write error")
	}
}

func (s *Server) internalError(w http.ResponseWriter, err error, msg string) {
	s.logger.Err(err).Msg(msg)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (s *Server) badRequest(w http.ResponseWriter, err error, msg string) {
	s.logger.Debug().Err(err).Msg(msg)
	http.Error(w, err.Error(), http.StatusBadRequest)
}
