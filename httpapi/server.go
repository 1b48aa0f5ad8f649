package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"golang.org/x/time/rate"

	"github.com/lmlang/graphlang/contracts"
	"github.com/lmlang/graphlang/editservice"
	"github.com/lmlang/graphlang/emit"
	"github.com/lmlang/graphlang/interp"
	"github.com/lmlang/graphlang/program"
	"github.com/lmlang/graphlang/store"
)

var errProgramNotFound = errors.New("httpapi: program not found")
var errProgramIsActive = errors.New("httpapi: program has an active interpreter run")

// MetricsRecorder is the narrow slice of metrics.Collector this package
// needs, kept local the way editservice and interp do.
type MetricsRecorder interface {
	editservice.MetricsRecorder
	interp.MetricsRecorder
}

// Config configures a Server. Store, Emitter, and Metrics default to a
// MemoryStore, a LogEmitter, and nil (no metrics) respectively.
type Config struct {
	Store              store.GraphStore
	Emitter            emit.Emitter
	Metrics            MetricsRecorder
	MaxRecursionDepth  int
	ReplayLimit        int
	AutonomyPlanRate   rate.Limit
	AutonomyPlanBurst  int
}

// Server is the HTTP facade's top-level object: one *editservice.Service
// per live program, a shared GraphStore for persistence and startup
// reload, and the ambient emit/metrics stack threaded into every
// operation it performs.
type Server struct {
	mu         sync.RWMutex
	programs   map[string]*editservice.Service
	activeRuns map[string]int

	store             store.GraphStore
	emitter           emit.Emitter
	metrics           MetricsRecorder
	maxRecursionDepth int
	replayLimit       int
	boundary          interp.ModuleBoundaryChecker

	planLimiter *rate.Limiter

	httpServer *http.Server
}

// NewServer constructs a Server ready to have its handler mounted.
func NewServer(cfg Config) *Server {
	if cfg.Store == nil {
		cfg.Store = store.NewMemoryStore()
	}
	if cfg.Emitter == nil {
		cfg.Emitter = emit.NewLogEmitter(nil, false)
	}
	if cfg.MaxRecursionDepth <= 0 {
		cfg.MaxRecursionDepth = 256
	}
	if cfg.ReplayLimit <= 0 {
		cfg.ReplayLimit = 1024
	}
	if cfg.AutonomyPlanRate <= 0 {
		cfg.AutonomyPlanRate = 1
	}
	if cfg.AutonomyPlanBurst <= 0 {
		cfg.AutonomyPlanBurst = 5
	}
	return &Server{
		programs:          make(map[string]*editservice.Service),
		activeRuns:        make(map[string]int),
		store:             cfg.Store,
		emitter:           cfg.Emitter,
		metrics:           cfg.Metrics,
		maxRecursionDepth: cfg.MaxRecursionDepth,
		replayLimit:       cfg.ReplayLimit,
		boundary:          contracts.NewChecker(),
		planLimiter:       rate.NewLimiter(cfg.AutonomyPlanRate, cfg.AutonomyPlanBurst),
	}
}

// Handler builds the routed net/http.Handler, wrapped with request
// timing the way httpsnoop instruments every other net/http server in
// the corpus.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerProgramRoutes(mux)
	s.registerEditRoutes(mux)
	s.registerSimulateRoutes(mux)
	s.registerQueryRoutes(mux)
	s.registerAutonomyRoutes(mux)
	return s.withLogging(mux)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.emitter.Emit(emit.Event{
			Msg: "http_request",
			Meta: map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   m.Code,
				"duration": time.Since(start),
				"bytes":    m.Written,
			},
		})
	})
}

// ListenAndServe starts the HTTP server on addr, blocking until it
// returns an error or Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Printf("httpapi: listening on %s", addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// LoadExisting reloads every program the configured store already knows
// about, so a restarted server resumes serving its prior programs.
func (s *Server) LoadExisting(ctx context.Context) error {
	ids, err := s.store.ListPrograms(ctx)
	if err != nil {
		return fmt.Errorf("httpapi: list programs at startup: %w", err)
	}
	for _, id := range ids {
		g, err := s.store.LoadProgram(ctx, id)
		if err != nil {
			return fmt.Errorf("httpapi: load program %s at startup: %w", id, err)
		}
		s.register(id, g)
	}
	return nil
}

func (s *Server) register(programID string, g *program.Graph) *editservice.Service {
	g.SetReplayLimit(s.replayLimit)
	opts := []editservice.Option{editservice.WithEmitter(s.emitter)}
	if s.metrics != nil {
		opts = append(opts, editservice.WithMetrics(s.metrics))
	}
	svc := editservice.New(programID, g, s.store, opts...)
	s.mu.Lock()
	s.programs[programID] = svc
	s.mu.Unlock()
	return svc
}

func (s *Server) lookup(programID string) (*editservice.Service, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.programs[programID]
	return svc, ok
}

func (s *Server) remove(programID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.programs, programID)
}

// beginRun/endRun track concurrently-running simulations per program, so
// DELETE /programs/{id} can reject deleting a program with an active
// interpreter run in flight (spec.md §6).
func (s *Server) beginRun(programID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeRuns[programID]++
}

func (s *Server) endRun(programID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeRuns[programID]--
	if s.activeRuns[programID] <= 0 {
		delete(s.activeRuns, programID)
	}
}

func (s *Server) isActive(programID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeRuns[programID] > 0
}

func (s *Server) list() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.programs))
	for id := range s.programs {
		out = append(out, id)
	}
	return out
}

func (s *Server) newInterpreterOptions(programID string) []interp.Option {
	opts := []interp.Option{
		interp.WithMaxRecursionDepth(s.maxRecursionDepth),
		interp.WithModuleBoundaryChecker(s.boundary),
		interp.WithEmitter(s.emitter, programID),
	}
	if s.metrics != nil {
		opts = append(opts, interp.WithMetrics(s.metrics, programID))
	}
	return opts
}
