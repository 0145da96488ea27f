package mcp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/freitascorp/platform-mcp/pkg/health"
	"github.com/freitascorp/platform-mcp/pkg/logger"
	"github.com/freitascorp/platform-mcp/pkg/observability"
	"github.com/freitascorp/platform-mcp/pkg/resilience"
)

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Addr string
	// Token, when set, must be presented as a bearer token on /mcp routes.
	Token   string
	Health  *health.Server
	Metrics *observability.MetricsRegistry
	// ShutdownTimeout bounds the graceful drain on cancellation.
	ShutdownTimeout time.Duration

	// MaxConcurrent caps in-flight /mcp requests; excess gets 503.
	MaxConcurrent int
	// RateLimit is requests per second per client IP; excess gets 429.
	RateLimit float64
	RateBurst int
}

// HTTPServer exposes a Server over HTTP.
type HTTPServer struct {
	mcp    *Server
	cfg    HTTPConfig
	router *chi.Mux

	bulkhead *resilience.Bulkhead
	limiter  *resilience.KeyedLimiter
	rejected *observability.Counter

	mu       sync.Mutex
	listener net.Listener
}

// NewHTTPServer wires routes and middleware around s.
func NewHTTPServer(s *Server, cfg HTTPConfig) *HTTPServer {
	if cfg.Health == nil {
		cfg.Health = health.NewServer(s.Info().Name)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	h := &HTTPServer{mcp: s, cfg: cfg, router: chi.NewRouter()}
	if cfg.MaxConcurrent > 0 {
		h.bulkhead = resilience.NewBulkhead("mcp", cfg.MaxConcurrent)
	}
	if cfg.RateLimit > 0 {
		h.limiter = resilience.NewKeyedLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	if cfg.Metrics != nil {
		h.rejected = cfg.Metrics.GetCounter("mcp_http_rejected_total", "Requests refused by the admission limits")
	}

	h.router.Use(middleware.RequestID)
	h.router.Use(middleware.RealIP)
	h.router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(logger.Slog().Handler(), slog.LevelDebug),
		NoColor: true,
	}))
	h.router.Use(middleware.Recoverer)

	cfg.Health.Mount(h.router)
	if cfg.Metrics != nil {
		h.router.Get("/metrics", observability.MetricsHandler(cfg.Metrics))
	}

	h.router.Route("/mcp", func(r chi.Router) {
		r.Use(h.auth)
		r.Use(h.admit)
		r.Post("/", h.handleRPC)
		r.Get("/tools", h.handleListTools)
		r.Post("/call", h.handleCall)
	})
	return h
}

// Router exposes the root HTTP handler.
func (h *HTTPServer) Router() http.Handler { return h.router }

// Addr returns the bound address once listening.
func (h *HTTPServer) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests. A clean shutdown returns ctx.Err().
func (h *HTTPServer) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.cfg.Addr)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.listener = ln
	h.mu.Unlock()

	srv := &http.Server{
		Handler:           h.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	h.cfg.Health.SetReady(true)
	logger.InfoCF("mcp", "HTTP transport listening", map[string]any{
		"addr":   ln.Addr().String(),
		"server": h.mcp.Info().Name,
		"auth":   h.cfg.Token != "",
	})

	select {
	case err := <-errc:
		h.cfg.Health.SetReady(false)
		return err
	case <-ctx.Done():
	}

	h.cfg.Health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), h.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.InfoCF("mcp", "HTTP transport stopped", nil)
	return ctx.Err()
}

func (h *HTTPServer) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.cfg.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		got := r.Header.Get("Authorization")
		want := "Bearer " + h.cfg.Token
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// admit applies the per-client rate limit, then the concurrency cap.
func (h *HTTPServer) admit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow(clientIP(r)) {
			h.reject(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		if h.bulkhead != nil {
			release, err := h.bulkhead.TryAcquire()
			if err != nil {
				h.reject(w, r, http.StatusServiceUnavailable, "server busy")
				return
			}
			defer release()
		}
		next.ServeHTTP(w, r)
	})
}

func (h *HTTPServer) reject(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if h.rejected != nil {
		h.rejected.Inc()
	}
	logger.WarnCF("mcp", "Request rejected", map[string]any{
		"client": clientIP(r),
		"path":   r.URL.Path,
		"status": status,
	})
	w.Header().Set("Retry-After", "1")
	writeJSON(w, status, map[string]string{"error": msg})
}

// clientIP strips the port; RealIP has already applied forwarding headers.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (h *HTTPServer) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(nil, &Error{Code: ErrParse, Message: "parse error: " + err.Error()}))
		return
	}
	resp := h.mcp.Handle(r.Context(), &req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPServer) handleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.mcp.toolsList())
}

func (h *HTTPServer) handleCall(w http.ResponseWriter, r *http.Request) {
	var req CallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": &Error{Code: ErrParse, Message: "invalid json"}})
		return
	}
	result, rpcErr := h.mcp.CallTool(r.Context(), req.Name, req.Arguments)
	if rpcErr != nil {
		writeJSON(w, statusFor(rpcErr.Code), map[string]any{"error": rpcErr})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func statusFor(code int) int {
	switch code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInvalidReq, ErrInvalidParams, ErrParse:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
