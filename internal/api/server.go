// Package api exposes the translation memory, prompt assembly and stammer
// detection over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/verba-dev/verba/internal/memory"
	"github.com/verba-dev/verba/internal/observability"
	"github.com/verba-dev/verba/internal/prompt"
	"github.com/verba-dev/verba/internal/stammer"
)

// defaultExampleLimit is how many retrieved examples a prompt carries.
const defaultExampleLimit = 4

// TranslationStore is the slice of the translation memory the API needs.
type TranslationStore interface {
	AddPair(ctx context.Context, sourceLang, targetLang, sentence, translation string) error
	SearchSimilar(ctx context.Context, query, sourceLang, targetLang string, limit int) ([]memory.Example, error)
}

// Config holds API server configuration.
type Config struct {
	ListenAddr string // e.g. ":8080"
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{ListenAddr: ":8080"}
}

// Server is the verba HTTP API server.
type Server struct {
	config *Config
	store  TranslationStore
	server *http.Server

	requestsTotal    *observability.Counter
	requestSeconds   *observability.Histogram
	pairsAdded       *observability.Counter
	stammerFlagged   *observability.Counter
	requestsInFlight *observability.Gauge
}

// NewServer creates the API server. The registry may be shared with other
// components; passing nil disables metrics collection endpoints gracefully.
func NewServer(config *Config, store TranslationStore, registry *observability.MetricsRegistry) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if registry == nil {
		registry = observability.NewMetricsRegistry()
	}

	s := &Server{
		config:           config,
		store:            store,
		requestsTotal:    registry.NewCounter("verba_http_requests_total", "Total HTTP requests served", nil),
		requestSeconds:   registry.NewHistogram("verba_http_request_duration_seconds", "HTTP request latency", nil, nil),
		pairsAdded:       registry.NewCounter("verba_pairs_added_total", "Translation pairs stored", nil),
		stammerFlagged:   registry.NewCounter("verba_stammer_flagged_total", "Translations flagged as stammering", nil),
		requestsInFlight: registry.NewGauge("verba_http_requests_in_flight", "HTTP requests currently being served", nil),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/pairs", s.handlePairs)
	mux.HandleFunc("/prompt", s.handlePrompt)
	mux.HandleFunc("/stammering", s.handleStammering)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", registry.Handler())

	handler := corsMiddleware(s.instrument(loggingMiddleware(mux)))

	s.server = &http.Server{
		Addr:         config.ListenAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the configured HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving the API.
func (s *Server) Start() error {
	slog.Info("Starting API server", "addr", s.config.ListenAddr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("Stopping API server")
	return s.server.Shutdown(ctx)
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "verba translation memory API",
	})
}

// pairRequest is the POST /pairs body.
type pairRequest struct {
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	Sentence       string `json:"sentence"`
	Translation    string `json:"translation"`
}

// handlePairs handles POST /pairs
func (s *Server) handlePairs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req pairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("decoding body: %w", err))
		return
	}

	err := s.store.AddPair(r.Context(), req.SourceLanguage, req.TargetLanguage, req.Sentence, req.Translation)
	switch {
	case errors.Is(err, memory.ErrValidation):
		respondError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		slog.Error("Failed to add pair", "error", err)
		respondError(w, http.StatusBadGateway, fmt.Errorf("failed to add pair: %w", err))
		return
	}

	s.pairsAdded.Inc()
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// promptResponse is the GET /prompt reply.
type promptResponse struct {
	Prompt string `json:"prompt"`
}

// handlePrompt handles GET /prompt
func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	sourceLang := q.Get("source_language")
	targetLang := q.Get("target_language")
	query := q.Get("query_sentence")
	if sourceLang == "" || targetLang == "" || query == "" {
		respondError(w, http.StatusBadRequest,
			errors.New("source_language, target_language and query_sentence are required"))
		return
	}

	examples, err := s.store.SearchSimilar(r.Context(), query, sourceLang, targetLang, defaultExampleLimit)
	if err != nil {
		slog.Error("Failed to search similar pairs", "error", err)
		respondError(w, http.StatusBadGateway, fmt.Errorf("failed to generate prompt: %w", err))
		return
	}

	respondJSON(w, http.StatusOK, promptResponse{
		Prompt: prompt.Build(sourceLang, targetLang, query, examples),
	})
}

// stammeringResponse is the GET /stammering reply.
type stammeringResponse struct {
	HasStammer bool `json:"has_stammer"`
}

// handleStammering handles GET /stammering
func (s *Server) handleStammering(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	if !q.Has("source_sentence") || !q.Has("translated_sentence") {
		respondError(w, http.StatusBadRequest,
			errors.New("source_sentence and translated_sentence are required"))
		return
	}

	_, span := observability.StartDetectorSpan(r.Context())
	flagged := stammer.Detect(q.Get("source_sentence"), q.Get("translated_sentence"))
	span.End()

	if flagged {
		s.stammerFlagged.Inc()
	}
	respondJSON(w, http.StatusOK, stammeringResponse{HasStammer: flagged})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error body with the given status.
func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"detail": err.Error()})
}

// instrument tracks request counts, latency and in-flight gauge.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.requestsInFlight.Inc()
		defer s.requestsInFlight.Dec()

		ctx, span := observability.StartHTTPSpan(r.Context(), r.Method, r.URL.Path)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctx))

		s.requestsTotal.Inc()
		s.requestSeconds.ObserveDuration(start)
	})
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
