package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bnema/convqueue/internal/adapter/http/middleware"
	"github.com/bnema/convqueue/internal/adapter/http/ratelimit"
)

type Server struct {
	mux        *http.ServeMux
	handlers   *Handlers
	sseHandler *SSEHandler
	auth       *TokenAuth
	limiter    *ratelimit.FailureLimiter
	handler    http.Handler
}

type ServerConfig struct {
	Queue     QueueService
	Assets    AssetReader
	Events    EventSource
	Auth      *TokenAuth
	Limiter   *ratelimit.FailureLimiter
	PurgeDays int
}

func NewServer(cfg ServerConfig) *Server {
	mux := http.NewServeMux()
	handlers := NewHandlers(cfg.Queue, cfg.Assets, cfg.PurgeDays)

	s := &Server{
		mux:        mux,
		handlers:   handlers,
		sseHandler: NewSSEHandler(cfg.Events, handlers),
		auth:       cfg.Auth,
		limiter:    cfg.Limiter,
	}

	s.registerRoutes()
	s.handler = middleware.RequestLogger(middleware.SecurityHeaders(s.mux))

	return s
}

func (s *Server) protect(next http.HandlerFunc) http.HandlerFunc {
	return RequireToken(s.auth, s.limiter, next)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handlers.StatusPage())
	s.mux.HandleFunc("GET /events", s.sseHandler.Events())
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /api/queue", s.handlers.QueueState())
	s.mux.HandleFunc("GET /api/queue/items/{id}", s.handlers.GetItem())

	s.mux.HandleFunc("POST /api/queue/items", s.protect(s.handlers.AddItem()))
	s.mux.HandleFunc("POST /api/queue/items/{id}/cancel", s.protect(s.handlers.CancelItem()))
	s.mux.HandleFunc("DELETE /api/queue/items/{id}", s.protect(s.handlers.DeleteItem()))
	s.mux.HandleFunc("DELETE /api/assets/{assetId}/queue", s.protect(s.handlers.RemoveAsset()))
	s.mux.HandleFunc("POST /api/queue/process", s.protect(s.handlers.Process()))
	s.mux.HandleFunc("POST /api/queue/purge", s.protect(s.handlers.Purge()))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
