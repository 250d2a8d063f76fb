// Package fakeapi implements an in-process stand-in for the Pulse API. It
// scores texts deterministically, answers slow requests with asynchronous
// jobs and records every request it serves.
package fakeapi

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the fake Pulse API server.
type Server struct {
	router chi.Router
	logger *slog.Logger

	maxItems      int
	pendingPolls  int
	failMessage   string
	statusErrors  int
	asyncFastMode bool

	mu        sync.Mutex
	jobs      map[string]*job
	counts    map[string]int
	simSizes  []int
	statusHit int
}

// Option configures optional Server behaviour.
type Option func(*Server)

// WithMaxItems rejects similarity requests carrying more than n items with
// 413. Zero disables the limit.
func WithMaxItems(n int) Option {
	return func(s *Server) {
		s.maxItems = n
	}
}

// WithPendingPolls keeps each job pending for n status polls before it
// completes.
func WithPendingPolls(n int) Option {
	return func(s *Server) {
		s.pendingPolls = n
	}
}

// WithFailingJobs makes every job finish in the failed state with message.
func WithFailingJobs(message string) Option {
	return func(s *Server) {
		s.failMessage = message
	}
}

// WithStatusErrors answers the first n job status queries with 503.
func WithStatusErrors(n int) Option {
	return func(s *Server) {
		s.statusErrors = n
	}
}

// WithAsyncFastMode answers fast requests with a job handle too.
func WithAsyncFastMode() Option {
	return func(s *Server) {
		s.asyncFastMode = true
	}
}

// New creates a fake API server with all routes registered.
func New(logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router: chi.NewRouter(),
		logger: logger.With("component", "fakeapi"),
		jobs:   make(map[string]*job),
		counts: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(gzipMiddleware)

	r.Post("/similarity", s.handleSimilarity)
	r.Post("/themes", s.handleThemes)
	r.Post("/sentiment", s.handleSentiment)
	r.Post("/extractions", s.handleExtractions)
	r.Post("/embeddings", s.handleEmbeddings)

	r.Get("/jobs", s.handleJobStatus)
	r.Get("/jobs/{id}", s.handleLegacyJobStatus)
	r.Get("/results/{id}", s.handleJobResult)
}

// Count returns how many requests the endpoint has served, e.g.
// Count("similarity") or Count("jobs").
func (s *Server) Count(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[endpoint]
}

// SimilaritySizes returns the item count of every similarity request, in
// arrival order.
func (s *Server) SimilaritySizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.simSizes...)
}

// Reset clears the request counters.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = make(map[string]int)
	s.simSizes = nil
}

func (s *Server) count(endpoint string) {
	s.mu.Lock()
	s.counts[endpoint]++
	s.mu.Unlock()
}
