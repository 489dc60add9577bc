// Package api exposes the paper engine over HTTP: auth, trading, account
// queries, market data, insights, and the WebSocket stream.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/commodex/paper-engine/internal/auth"
	"github.com/commodex/paper-engine/internal/insight"
	"github.com/commodex/paper-engine/internal/market"
	"github.com/commodex/paper-engine/internal/metrics"
	"github.com/commodex/paper-engine/internal/trade"
)

// Options tunes the HTTP surface.
type Options struct {
	AllowedOrigins []string
	StaticDir      string // serve a bundled frontend when non-empty
}

// Server collects the handlers and their dependencies.
type Server struct {
	engine   *trade.Engine
	auth     *auth.Service
	market   *market.Simulator
	insights *insight.Generator
	hub      *Hub
	opts     Options
}

func NewServer(engine *trade.Engine, authSvc *auth.Service, sim *market.Simulator, insights *insight.Generator, hub *Hub, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		engine:   engine,
		auth:     authSvc,
		market:   sim,
		insights: insights,
		hub:      hub,
		opts:     opts,
	}
}

// Router builds the chi router with the full route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Get("/prices", s.handleQuotes)
		r.Get("/prices/{symbol}/history", s.handlePriceHistory)
		r.Get("/insights", s.handleInsights)
		r.Get("/insights/{symbol}", s.handleInsight)

		r.Group(func(r chi.Router) {
			r.Use(s.withUser)
			r.Post("/auth/logout", s.handleLogout)
			r.Post("/trade", s.handleTrade)
			r.Get("/account/summary", s.handleSummary)
			r.Get("/account/history", s.handleHistory)
		})
	})

	if s.opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.opts.StaticDir)))
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok","service":"paper-engine"}`))
}

// --- Session middleware ---

type userKey struct{}

// withUser authenticates the bearer token and stores the username in the
// request context.
func (s *Server) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		username, err := s.auth.Resolve(r.Context(), token)
		if err != nil {
			writeError(w, "invalid or expired session", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(ctx context.Context) string {
	username, _ := ctx.Value(userKey{}).(string)
	return username
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// --- JSON helpers ---

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
