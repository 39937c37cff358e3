package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/suggest"
)

// HabitAPI is the habit surface the server needs.
type HabitAPI interface {
	CreateHabit(ctx context.Context, name string, start, end core.Date, interval int, unit core.RepeatUnit) (core.Habit, error)
	ListHabits(ctx context.Context) ([]core.Habit, error)
	ListDueForDate(ctx context.Context, date core.Date) ([]core.DueHabit, error)
	ToggleCompletion(ctx context.Context, habitID uuid.UUID, date core.Date) (core.ToggleStatus, error)
	ListCompletionsForDate(ctx context.Context, date core.Date) ([]uuid.UUID, error)
}

// FinanceAPI is the finance surface the server needs.
type FinanceAPI interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
	ListLabels(ctx context.Context) ([]core.Label, error)
	CreateLabel(ctx context.Context, text string, categoryID uuid.UUID) (core.Label, error)
	CreateTransaction(ctx context.Context, amount core.Money, occurredAt core.Date, description string, labelID uuid.UUID) (core.Transaction, error)
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	WeeklyReview(ctx context.Context, start, end core.Date) (core.WeeklyReview, error)
}

type Server struct {
	http.Server
	habits      HabitAPI
	finance     FinanceAPI
	suggester   suggest.Provider
	rateLimiter *rateLimiter

	// Review responses are cached per range and flushed whenever a
	// transaction lands.
	reviewCache *cache.LRUCache[core.WeeklyReview]

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, habits HabitAPI, finance FinanceAPI, suggester suggest.Provider) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		habits:      habits,
		finance:     finance,
		suggester:   suggester,
		rateLimiter: newRateLimiter(),
		reviewCache: cache.NewLRUCache[core.WeeklyReview](100, 5*time.Minute),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/habits", s.withMiddleware(s.handleListHabits))
	mux.HandleFunc("POST /api/habits", s.withMiddleware(s.handleCreateHabit))
	mux.HandleFunc("GET /api/habits/due", s.withMiddleware(s.handleListDue))
	mux.HandleFunc("POST /api/habits/{id}/toggle", s.withMiddleware(s.handleToggle))
	mux.HandleFunc("GET /api/habits/completions", s.withMiddleware(s.handleListCompletions))

	mux.HandleFunc("GET /api/categories", s.withMiddleware(s.handleListCategories))
	mux.HandleFunc("GET /api/labels", s.withMiddleware(s.handleListLabels))
	mux.HandleFunc("POST /api/labels", s.withMiddleware(s.handleCreateLabel))
	mux.HandleFunc("GET /api/transactions", s.withMiddleware(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.withMiddleware(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/reviews/weekly", s.withMiddleware(s.handleWeeklyReview))
	mux.HandleFunc("GET /api/reviews/weekly/suggestion", s.withMiddleware(s.handleWeeklySuggestion))

	return s
}

// Shutdown stops the server and its background cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withMiddleware adds security headers, rate limiting and request
// logging to a handler.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Client IP, considering proxies.
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		// Writes are rate limited per client.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}
