// Package http exposes a running engine over HTTP for development tools:
// dispatching actions, reading the snapshot, listing handlers, streaming the
// action timeline over SSE, and serving metrics and the run journal.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MaxBodyBytes bounds the size of POST /actions bodies.
const MaxBodyBytes = 1 << 20

// ErrInvalidAction is returned for actions rejected before dispatch.
var ErrInvalidAction = errors.New("invalid action")

// Server serves the devtools API for one runtime.
type Server struct {
	Runtime ports.Runtime
	Streams *StreamManager

	router      chi.Router
	logger      *slog.Logger
	version     string
	metrics     http.Handler
	trace       func() any
	validate    func(domain.Action) error
	unsubscribe func()
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion is reported by GET /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = strings.TrimSpace(v)
	}
}

// WithMetrics mounts a Prometheus handler on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithTrace serves the result of fn as JSON on /trace, typically a journal snapshot.
func WithTrace[T any](fn func() T) Option {
	return func(s *Server) {
		s.trace = func() any { return fn() }
	}
}

// WithValidator checks every posted action before dispatch.
func WithValidator(fn func(domain.Action) error) Option {
	return func(s *Server) {
		s.validate = fn
	}
}

// NewServer creates the devtools server and starts relaying the runtime's actions to SSE clients.
// Call Close to stop relaying.
func NewServer(rt ports.Runtime, opts ...Option) *Server {
	s := &Server{
		Runtime: rt,
		Streams: NewStreamManager(),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger
	s.unsubscribe = rt.Subscribe(s.Streams.relay)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/state", s.GetState)
	r.Get("/handlers", s.GetHandlers)
	r.Post("/actions", s.PostActions)
	r.Get("/actions/stream", s.SubscribeActions)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	if s.trace != nil {
		r.Get("/trace", s.GetTrace)
	}
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops relaying actions and disconnects stream clients.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.Streams.CloseAll()
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	version := s.version
	if version == "" {
		version = "unknown"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "ripple-devtools",
		"version": version,
	})
}

// GetState handles the GET /state request. The optional "path" query selects a sub-tree.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	state := s.Runtime.State()
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusOK, state.Tree())
		return
	}
	v, ok := state.Get(path)
	if !ok {
		s.fail(w, fmt.Errorf("%w: %s", domain.ErrStateNotFound, path))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GetHandlers handles the GET /handlers request.
func (s *Server) GetHandlers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Runtime.Handlers())
}

// GetTrace handles the GET /trace request.
func (s *Server) GetTrace(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.trace())
}

// ActionRequest is one action posted to /actions.
type ActionRequest struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// PostActions handles the POST /actions request. The body is one action or an array of actions;
// they are dispatched together, in order.
func (s *Server) PostActions(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		s.fail(w, fmt.Errorf("%w: %w", ErrInvalidAction, err))
		return
	}

	var reqs []ActionRequest
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(body, &reqs)
	} else {
		var one ActionRequest
		err = json.Unmarshal(body, &one)
		reqs = append(reqs, one)
	}
	if err != nil {
		s.fail(w, fmt.Errorf("%w: %v", ErrInvalidAction, err))
		return
	}

	acts := make([]domain.Action, 0, len(reqs))
	for _, req := range reqs {
		if req.Type == "" {
			s.fail(w, fmt.Errorf("%w: missing type", ErrInvalidAction))
			return
		}
		act := domain.NewAction(req.Type, req.Payload)
		if s.validate != nil {
			if err := s.validate(act); err != nil {
				s.fail(w, fmt.Errorf("%w: %v", ErrInvalidAction, err))
				return
			}
		}
		acts = append(acts, act)
	}

	if err := s.Runtime.Dispatch(acts...); err != nil {
		s.fail(w, err)
		return
	}

	ids := make([]string, len(acts))
	for i, act := range acts {
		ids[i] = act.Meta.ID
	}
	s.logger.Debug("actions dispatched", "count", len(acts))
	writeJSON(w, http.StatusAccepted, map[string]any{"ids": ids})
}

// SubscribeActions handles the GET /actions/stream request (SSE).
// The optional "types" query is a comma separated filter.
func (s *Server) SubscribeActions(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeActions: streaming not supported")
		return
	}

	var filter []string
	if raw := r.URL.Query().Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter = append(filter, t)
			}
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(filter)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: action\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// StatusFor maps runtime errors to HTTP status codes.
func StatusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidAction):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStateNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidPayload):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrBusStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	} else {
		s.logger.Warn("request rejected", "err", err, "status", status)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StreamManager fans actions out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan string][]string
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan string][]string),
		logger:      slog.New(slog.DiscardHandler),
	}
}

// Subscribe registers a client interested in the given action types (all when empty).
func (sm *StreamManager) Subscribe(types []string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 64)
	sm.subscribers[ch] = types

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

// Broadcast sends act to every interested subscriber. Slow clients miss messages.
func (sm *StreamManager) Broadcast(act domain.Action) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if len(sm.subscribers) == 0 {
		return
	}

	msg, err := json.Marshal(act)
	if err != nil {
		sm.logger.Warn("SSE: action not encodable", "action", act.Type, "err", err)
		return
	}
	for ch, types := range sm.subscribers {
		if len(types) > 0 && !act.Is(types...) {
			continue
		}
		select {
		case ch <- string(msg):
		default:
			sm.logger.Warn("SSE: client buffer full, dropping action", "action", act.Type)
		}
	}
}

// Count returns the number of connected subscribers.
func (sm *StreamManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

// CloseAll disconnects every subscriber.
func (sm *StreamManager) CloseAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for ch := range sm.subscribers {
		delete(sm.subscribers, ch)
		close(ch)
	}
}

func (sm *StreamManager) relay(_ context.Context, act domain.Action) {
	sm.Broadcast(act)
}
