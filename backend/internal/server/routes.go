package server

import (
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/Warpdrop/backend/internal/metrics"
	"github.com/BioHazard786/Warpdrop/backend/internal/signaling"
	"github.com/BioHazard786/Warpdrop/internal/version"
)

// maxRequestBody bounds a signaling request. SDP blobs are the largest payload.
const maxRequestBody = 64 * 1024

func (s *Server) registerRoutes() {
	r := s.router

	r.HandleFunc("/signaling", s.handleSignaling).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.serveWs).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.PrometheusHandler(s.metrics)).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)
	r.NotFoundHandler = http.HandlerFunc(notFoundHandler)
}

// handleSignaling is the request/response endpoint: one JSON request in, one
// JSON reply out. Kinds of failure map onto 400 and 404.
func (s *Server) handleSignaling(w http.ResponseWriter, r *http.Request) {
	req, err := signaling.DecodeRequest(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		s.log.Debug("rejecting signaling request", "error", err, "remote_addr", r.RemoteAddr)
		WriteJSON(w, signaling.StatusCode(err), signaling.NewErrorReply(err))
		return
	}

	reply, err := s.dispatcher.Dispatch(req, originAddress(r))
	if err != nil {
		errReply := signaling.NewErrorReply(err)
		errReply.SetRequestID(req.RequestID)
		WriteJSON(w, signaling.StatusCode(err), errReply)
		return
	}
	reply.SetRequestID(req.RequestID)
	WriteJSON(w, http.StatusOK, reply)
}

// serveWs upgrades to the push transport. The connection is bound to a peer
// once that peer registers over it.
func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("failed to upgrade connection", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	client := signaling.NewClient(s.hub, conn, originAddress(r))
	s.hub.Attach(client)

	go client.WritePump()
	go client.ReadPump()
}

func (s *Server) upgrader() *websocket.Upgrader {
	allowed := s.cfg.AllowedOrigin
	return &websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowed == "" || allowed == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == allowed
		},
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ready": true})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": version.Version,
		"commit":  version.Commit,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, s.dispatcher.Store().Stats())
}

func methodNotAllowedHandler(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "405 Method Not Allowed", http.StatusMethodNotAllowed)
}

func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "404 Not Found", http.StatusNotFound)
}

// originAddress prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the host part of the socket address.
func originAddress(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
