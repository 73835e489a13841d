// Package server wires the REST surface over the store, media storage, and
// feed refresher.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"sportnews/internal/config"
	"sportnews/internal/media"
	"sportnews/internal/vk"
)

const (
	maxUploadBytes       = 32 << 20
	limiterIdleRetention = 5 * time.Minute
	limiterSweepInterval = time.Minute
)

// Refresher runs one feed refresh cycle.
type Refresher interface {
	Refresh(ctx context.Context) vk.RefreshResult
}

// App wires handlers and dependencies for the HTTP server.
type App struct {
	db        *sql.DB
	cfg       *config.Config
	storage   *media.Storage
	refresher Refresher
	limiter   *ipRateLimiter
	refreshMu sync.Mutex
}

// New constructs an App over its collaborators.
func New(db *sql.DB, cfg *config.Config, storage *media.Storage, refresher Refresher) *App {
	app := new(App)
	app.db = db
	app.cfg = cfg
	app.storage = storage
	app.refresher = refresher
	app.limiter = newIPRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)

	return app
}

// Routes returns the fully configured application HTTP handler.
func (a *App) Routes() http.Handler {
	mux := http.NewServeMux()
	a.registerNewsRoutes(mux)
	a.registerSiteRoutes(mux)

	var handler http.Handler = mux

	handler = a.withRateLimit(handler)
	handler = a.withRequestID(handler)

	return handler
}

func (a *App) registerNewsRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /news/{newsID}", a.handleGetNews)
	mux.HandleFunc("POST /news/add", a.handleAddNews)
	mux.HandleFunc("PUT /news/{newsID}", a.handleEditNews)
	mux.HandleFunc("DELETE /news/{newsID}", a.handleDeleteNews)
	mux.HandleFunc("POST /news/refresh", a.handleRefreshNews)
	mux.HandleFunc("GET /news/refresh", a.handleRefreshNews)
	mux.HandleFunc("GET /files/{name}", a.handleServeFile)
}

func (a *App) registerSiteRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("GET /{$}", a.handleIndex)
	mux.HandleFunc("GET /contacts", a.handleListContacts)
	mux.HandleFunc("GET /contacts/{contactID}", a.handleGetContact)
	mux.HandleFunc("POST /contacts/add", a.handleAddContact)
	mux.HandleFunc("PUT /contacts/{contactID}", a.handleEditContact)
	mux.HandleFunc("DELETE /contacts/{contactID}", a.handleDeleteContact)
	mux.HandleFunc("GET /about", a.handleGetAbout)
	mux.HandleFunc("PUT /about", a.handleUpdateAbout)
}

func (a *App) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *App) renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("encode response failed", "err", err)
	}
}

func (a *App) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

func (a *App) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.limiter.allow(clientIP(r)) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)

			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	// X-Forwarded-For may carry the whole proxy chain; the client is the
	// first entry.
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")

		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

type limiterEntry struct {
	lastSeen time.Time
	limiter  *rate.Limiter
}

// ipRateLimiter tracks one token bucket per client IP and sweeps idle
// entries so the map cannot grow without bound.
type ipRateLimiter struct {
	entries   map[string]*limiterEntry
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	lastSweep time.Time
}

func newIPRateLimiter(rps float64, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		entries:   make(map[string]*limiterEntry),
		rps:       rate.Limit(rps),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.sweepLocked(now)

	entry, ok := l.entries[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.entries[ip] = entry
	}

	entry.lastSeen = now

	return entry.limiter.Allow()
}

func (l *ipRateLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < limiterSweepInterval {
		return
	}

	l.lastSweep = now

	for ip, entry := range l.entries {
		if now.Sub(entry.lastSeen) > limiterIdleRetention {
			delete(l.entries, ip)
		}
	}
}
