package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"cashcast/internal/core"
	"cashcast/internal/forecast"
	"cashcast/internal/log"
	"cashcast/internal/middleware/ratelimit"
	"cashcast/internal/middleware/security"
	"cashcast/internal/services"
)

// ForecastAPI is what the handlers need from the forecast service.
type ForecastAPI interface {
	RecordTransaction(ctx context.Context, t core.Transaction) (int64, error)
	Train(ctx context.Context, req services.TrainRequest) (services.TrainResult, error)
	RequestTraining(ctx context.Context, req services.TrainRequest) (string, error)
	ForecastDaily(ctx context.Context, q services.ForecastQuery) (forecast.Result, error)
	ForecastMonthly(ctx context.Context, q services.ForecastQuery) (forecast.Result, error)
}

// ReadyFunc reports whether a dependency is usable. A nil ReadyFunc is always ready.
type ReadyFunc func(ctx context.Context) error

// Options tune the server. Zero values use the defaults.
type Options struct {
	// WriteRateLimit caps POST requests per client per minute.
	WriteRateLimit int
	Ready          ReadyFunc
	Logger         *log.Logger
}

type Server struct {
	http.Server
	api        ForecastAPI
	ready      ReadyFunc
	limiter    *ratelimit.Limiter
	logger     *log.Logger
	structured *log.StructuredLogger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, api ForecastAPI, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	rl := ratelimit.DefaultConfig()
	if opts.WriteRateLimit > 0 {
		rl.RequestsPerMinute = opts.WriteRateLimit
	}

	s := &Server{
		api:        api,
		ready:      opts.Ready,
		limiter:    ratelimit.NewLimiter(rl),
		logger:     logger,
		structured: log.NewStructuredLogger(logger),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	limited := s.limiter.Middleware(clientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded", "client_ip", clientIP(r), log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	})
	mux.Handle("POST /train/{granularity}", limited(http.HandlerFunc(s.handleTrain)))
	mux.Handle("POST /transactions", limited(http.HandlerFunc(s.handleCreateTransaction)))
	mux.HandleFunc("GET /forecast/daily", s.handleForecastDaily)
	mux.HandleFunc("GET /forecast/monthly", s.handleForecastMonthly)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var handler http.Handler = mux
	handler = headers.Middleware(handler)
	handler = log.AccessMiddleware(s.structured)(handler)
	handler = log.RequestIDMiddleware(requestID)(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// requestID reuses an incoming X-Request-ID or generates one.
func requestID(r *http.Request) string {
	if id := sanitizeInput(r.Header.Get("X-Request-ID")); id != "" && len(id) <= 64 {
		return id
	}
	return generateRequestID()
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// clientIP extracts the client address, preferring proxy headers.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
