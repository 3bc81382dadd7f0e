package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"putscreenpro/models"
	"putscreenpro/notifications"
	"putscreenpro/realtime"
)

// ScreenRunner runs a screening request. Implemented by screener.Screener.
type ScreenRunner interface {
	Screen(ctx context.Context, req models.ScreeningRequest) ([]models.ScreeningResult, error)
}

// CacheController exposes the gateway's cache surface for the admin
// endpoints.
type CacheController interface {
	CacheLen() int
	ClearCache()
}

// Server handles HTTP API requests
type Server struct {
	screener ScreenRunner
	cache    CacheController
	broker   *realtime.Broker
	webhooks *notifications.WebhookManager
}

// NewServer creates a new API server instance. webhooks may be nil when no
// endpoints are configured.
func NewServer(screener ScreenRunner, cache CacheController, broker *realtime.Broker, webhooks *notifications.WebhookManager) *Server {
	return &Server{
		screener: screener,
		cache:    cache,
		broker:   broker,
		webhooks: webhooks,
	}
}

// Routes builds the request mux. Split out from Start so tests can drive
// the handlers without a listener.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/events", s.broker) // SSE endpoint
	mux.HandleFunc("POST /api/screen", s.handleScreen)
	mux.HandleFunc("GET /api/cache", s.handleCacheStats)
	mux.HandleFunc("POST /api/cache/clear", s.handleCacheClear)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.corsMiddleware(s.loggingMiddleware(mux))
}

// Start starts the HTTP server on the specified port
func (s *Server) Start(port int) error {
	serverAddr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Printf("🚀 API Server starting on %s", serverAddr)
	return http.ListenAndServe(serverAddr, s.Routes())
}

// screenResponse is the POST /api/screen reply body.
type screenResponse struct {
	Results    []models.ScreeningResult `json:"results"`
	Count      int                      `json:"count"`
	DurationMS int64                    `json:"duration_ms"`
}

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	var req models.ScreeningRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	if msg := validateScreenRequest(&req); msg != "" {
		respondWithError(w, http.StatusBadRequest, msg, nil)
		return
	}

	start := time.Now()
	results, err := s.screener.Screen(r.Context(), req)
	if err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, err.Error(), err)
		return
	}

	if s.webhooks != nil {
		s.webhooks.NotifyResults(results)
	}

	if results == nil {
		results = []models.ScreeningResult{}
	}
	respondJSON(w, http.StatusOK, screenResponse{
		Results:    results,
		Count:      len(results),
		DurationMS: time.Since(start).Milliseconds(),
	})
}

// validateScreenRequest bounds-checks the request before it reaches the
// pipeline. Zero values mean "use the configured default" and pass.
func validateScreenRequest(req *models.ScreeningRequest) string {
	for _, symbol := range req.Symbols {
		if len(symbol) == 0 || len(symbol) > 10 || !isTicker(symbol) {
			return fmt.Sprintf("invalid symbol %q", symbol)
		}
	}
	if req.MaxDTE < 0 || req.MaxDTE > 365 {
		return "max_dte must be between 1 and 365"
	}
	if req.MaxPITM < 0 || req.MaxPITM > 100 {
		return "max_pitm must be between 0 and 100"
	}
	if req.MinOpenInterest < 0 {
		return "min_open_interest must not be negative"
	}
	if req.MinVolume < 0 {
		return "min_volume must not be negative"
	}
	return ""
}

// isTicker accepts plain alphabetic tickers, ignoring surrounding spaces
// and case (normalization happens downstream).
func isTicker(symbol string) bool {
	trimmed := strings.TrimSpace(symbol)
	if trimmed == "" {
		return false
	}
	for _, r := range trimmed {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": s.cache.CacheLen(),
	})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	before := s.cache.CacheLen()
	s.cache.ClearCache()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"cleared": before,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"sse_subscribers": s.broker.ClientCount(),
		"cache_entries":   s.cache.CacheLen(),
	})
}

// Middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("⚠️  Failed to encode response: %v", err)
	}
}

// respondWithError logs the error and sends a JSON error response
func respondWithError(w http.ResponseWriter, code int, message string, err error) {
	if err != nil {
		log.Printf("API Error [%d]: %s - %v", code, message, err)
	} else {
		log.Printf("API Error [%d]: %s", code, message)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
