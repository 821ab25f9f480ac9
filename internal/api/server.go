package api

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"espacios/internal/cache"
	"espacios/internal/engine"
)

// HTTPServer exposes the booking engine as a JSON API.
type HTTPServer struct {
	engine *engine.Engine
	cache  *cache.Cache
	logger *zerolog.Logger

	limitRate  rate.Limit
	limitBurst int
	limiters   map[string]*rate.Limiter
	limiterMu  sync.Mutex
}

// NewHTTPServer builds the server. conflictCache may be nil.
func NewHTTPServer(eng *engine.Engine, conflictCache *cache.Cache, logger *zerolog.Logger, perSec float64, burst int) *HTTPServer {
	return &HTTPServer{
		engine:     eng,
		cache:      conflictCache,
		logger:     logger,
		limitRate:  rate.Limit(perSec),
		limitBurst: burst,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Routes returns the handler with all endpoints registered.
func (s *HTTPServer) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/reservations", s.handleReservations)
	mux.HandleFunc("/api/reservations/", s.handleReservationByID)
	mux.HandleFunc("/api/reservations/export", s.handleExport)
	mux.HandleFunc("/api/conflicts", s.handleConflicts)
	mux.HandleFunc("/api/stats", s.handleStats)
	return s.withMiddleware(mux)
}

// withMiddleware adds request IDs, per-IP rate limiting and access
// logging around every endpoint.
func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		if !s.allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		start := time.Now()
		next.ServeHTTP(w, r)

		if s.logger != nil {
			s.logger.Info().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		}
	})
}

func (s *HTTPServer) allow(ip string) bool {
	if s.limitRate <= 0 {
		return true
	}
	s.limiterMu.Lock()
	limiter, ok := s.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(s.limitRate, s.limitBurst)
		s.limiters[ip] = limiter
	}
	s.limiterMu.Unlock()
	return limiter.Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
