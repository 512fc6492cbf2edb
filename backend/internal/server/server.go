package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/BioHazard786/Warpdrop/backend/internal/config"
	"github.com/BioHazard786/Warpdrop/backend/internal/metrics"
	"github.com/BioHazard786/Warpdrop/backend/internal/signaling"
)

var ErrServerClosed = http.ErrServerClosed

// Server is the HTTP face of the rendezvous service: the request/response
// signaling endpoint, the websocket push endpoint and the operational routes.
type Server struct {
	log        *slog.Logger
	cfg        config.Config
	dispatcher *signaling.Dispatcher
	hub        *signaling.Hub
	metrics    *metrics.Metrics

	ready atomic.Bool

	router  *mux.Router
	handler http.Handler
	srv     *http.Server
}

func New(cfg config.Config, logger *slog.Logger, dispatcher *signaling.Dispatcher, hub *signaling.Hub, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		log:        logger,
		cfg:        cfg,
		dispatcher: dispatcher,
		hub:        hub,
		metrics:    m,
		router:     mux.NewRouter(),
	}

	s.registerRoutes()

	// Middleware wraps the router rather than using router.Use so that 404,
	// 405 and CORS preflight responses pass through it as well.
	s.handler = chain(s.router,
		recoverMiddleware(s.log),
		requestIDMiddleware(),
		requestLoggerMiddleware(s.log),
		corsMiddleware(cfg.AllowedOrigin),
	)

	s.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped handler. Tests serve it with httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

func (s *Server) Serve(l net.Listener) error {
	s.ready.Store(true)
	s.log.Info("http server serving", "addr", l.Addr().String())
	return s.srv.Serve(l)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	return s.srv.Shutdown(ctx)
}

func (s *Server) Close() error {
	s.ready.Store(false)
	return s.srv.Close()
}

// WriteJSON writes a JSON response body and sets the Content-Type header.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}
