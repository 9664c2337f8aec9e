// Package server exposes the dashboard HTTP and WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/en-exe/calci-trade/internal/server/handler"
	"github.com/en-exe/calci-trade/internal/server/middleware"
	"github.com/en-exe/calci-trade/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication
}

// Handlers aggregates the HTTP handlers registered on the server.
type Handlers struct {
	Health  *handler.HealthHandler
	Status  *handler.StatusHandler
	Trades  *handler.TradeHandler
	History *handler.HistoryHandler
	Control *handler.ControlHandler
}

func (h Handlers) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", h.Status.GetStatus)
	mux.HandleFunc("GET /api/trades", h.Trades.ListTrades)
	mux.HandleFunc("GET /api/trades/open", h.Trades.ListOpenTrades)
	mux.HandleFunc("GET /api/activity", h.History.ListActivity)
	mux.HandleFunc("GET /api/scans", h.History.ListScans)
	mux.HandleFunc("GET /api/portfolio/history", h.History.ListSnapshots)
	mux.HandleFunc("POST /api/control/pause", h.Control.Pause)
	mux.HandleFunc("POST /api/control/resume", h.Control.Resume)
}

// Server is the headless HTTP + WebSocket API for the trading bot dashboard.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and middleware. A nil hub leaves the /ws
// endpoint unregistered.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	handlers.routes(mux)
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	// Outermost first: CORS answers preflights before auth can reject them.
	chain := []func(http.Handler) http.Handler{
		cors(cfg.CORSOrigins),
		middleware.Logging(logger),
		middleware.Auth(cfg.APIKey),
	}
	var h http.Handler = mux
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start blocks serving requests until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("server: listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// cors allows the configured dashboard origins. An empty list allows any
// origin, the sensible default for a localhost deployment.
func cors(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.ToLower(o)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" {
				if len(allowed) == 0 || allowed["*"] || allowed[strings.ToLower(origin)] {
					hdr := w.Header()
					hdr.Set("Access-Control-Allow-Origin", origin)
					hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					hdr.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					hdr.Set("Access-Control-Max-Age", "86400")
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
