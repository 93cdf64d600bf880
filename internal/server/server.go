// Package server is the persistence service the editor syncs with. It keeps a
// draft per record, applies edit transactions to it with the same primitives
// and protection rules the editor uses, and commits or discards drafts on
// submit and cancel.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"bibedit-cli/internal/format"
	"bibedit-cli/internal/marc"
	"bibedit-cli/internal/perm"
	"bibedit-cli/internal/protect"
	"bibedit-cli/internal/store"
	"bibedit-cli/internal/syncproto"
)

const (
	AuthNone  = "none"
	AuthToken = "token"
)

type Config struct {
	Addr     string
	Dir      string
	AuthMode string // none|token

	// SessionTTL bounds issued session tokens. Zero means 12h.
	SessionTTL time.Duration
	// LockGrace is how long an idle draft blocks other users. Zero means
	// perm.LockGrace().
	LockGrace time.Duration

	Protected []string
	Rules     marc.Rules
	Logger    zerolog.Logger
}

type Server struct {
	// mu serializes transactions; each one is a read-modify-write of a draft.
	mu sync.Mutex

	cfg       Config
	db        *store.DB
	secret    []byte
	validator marc.Validator
	policy    *protect.Policy
	log       zerolog.Logger
	now       func() time.Time
}

func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.Dir = strings.TrimSpace(cfg.Dir)
	cfg.AuthMode = strings.ToLower(strings.TrimSpace(cfg.AuthMode))
	if cfg.Dir == "" {
		return nil, errors.New("server: dir is empty")
	}
	if cfg.AuthMode == "" {
		cfg.AuthMode = AuthNone
	}
	if cfg.AuthMode != AuthNone && cfg.AuthMode != AuthToken {
		return nil, errors.New("server: invalid auth mode (expected none|token)")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if cfg.LockGrace <= 0 {
		cfg.LockGrace = perm.LockGrace()
	}

	db, err := store.Store{Dir: cfg.Dir}.Open(ctx)
	if err != nil {
		return nil, err
	}
	srv := &Server{
		cfg:       cfg,
		db:        db,
		validator: marc.Validator{Rules: cfg.Rules},
		policy:    protect.NewPolicy(cfg.Protected),
		log:       cfg.Logger.With().Str("component", "server").Logger(),
		now:       time.Now,
	}
	if cfg.AuthMode == AuthToken {
		secret, err := loadOrInitSecretKey(cfg.Dir)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		srv.secret = secret
	}
	return srv, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

// DB exposes the underlying record database.
func (s *Server) DB() *store.DB { return s.db }

func (s *Server) Close() error { return s.db.Close() }

func (s *Server) Handler() http.Handler {
	RegisterMetrics()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST "+syncproto.LoginPath, s.handleLogin)
	mux.HandleFunc("POST "+syncproto.EditPath, s.handleEdit)
	mux.HandleFunc("GET /records", s.handleRecords)
	mux.HandleFunc("GET /records/{recID}", s.handleRecord)
	mux.HandleFunc("GET /records/{recID}/changes", s.handleChanges)
	return RequestLogger(s.log)(mux)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	hs := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- hs.ListenAndServe() }()
	s.log.Info().Str("addr", s.cfg.Addr).Str("auth", s.cfg.AuthMode).Msg("listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = format.WriteJSON(w, list, false)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	recID, ok := pathRecID(w, r)
	if !ok {
		return
	}
	rec, err := s.db.Get(r.Context(), recID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	f := r.URL.Query().Get("format")
	if f == "mrk" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	if err := format.Write(w, rec, f, false); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	recID, ok := pathRecID(w, r)
	if !ok {
		return
	}
	cs, err := s.db.Changes(r.Context(), recID, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = format.WriteJSON(w, cs, false)
}

func pathRecID(w http.ResponseWriter, r *http.Request) (int, bool) {
	recID, err := strconv.Atoi(r.PathValue("recID"))
	if err != nil || recID <= 0 {
		http.Error(w, "invalid record id", http.StatusBadRequest)
		return 0, false
	}
	return recID, true
}
