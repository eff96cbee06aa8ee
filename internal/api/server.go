// Package api provides the local HTTP and WebSocket control server.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"autoclicker/internal/control"
	"autoclicker/internal/protocol"
	"autoclicker/internal/ui"
)

// snapshotTimeout bounds how long a status request waits for the plane
const snapshotTimeout = 2 * time.Second

// Plane is the part of the control plane the server reads state from
type Plane interface {
	Snapshot(ctx context.Context) (control.State, error)
}

// Server provides the HTTP API and the control page
type Server struct {
	plane Plane
	panel *ui.Panel
	token string
	hub   *Hub
	log   *zap.Logger
}

// NewServer creates a new API server. Commands go through panel, which must
// be connected to the plane; hub should be one of the plane's renderers.
func NewServer(plane Plane, panel *ui.Panel, hub *Hub, token string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		plane: plane,
		panel: panel,
		token: token,
		hub:   hub,
		log:   log,
	}
}

// Handler returns the routed handler with auth and panic recovery applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/toggle", s.handleToggle)
	mux.HandleFunc("/api/rebind", s.handleRebind)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/ws", s.hub.handleWebSocket)

	return s.authMiddleware(s.recoverMiddleware(mux))
}

// Start listens on addr and serves until ctx is cancelled. ready, if not nil,
// receives the bound address once listening. The hub is run by the caller.
func (s *Server) Start(ctx context.Context, addr string, ready chan<- net.Addr) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.log.Info("API server listening", zap.String("addr", ln.Addr().String()))
	if ready != nil {
		ready <- ln.Addr()
	}

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.Error("Recovered from panic", zap.Any("panic", err), zap.String("path", r.URL.Path))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the API token if configured. Browsers cannot set
// headers on WebSocket requests, so a token query parameter is accepted too.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug("Request", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.String("remote", r.RemoteAddr))

		// Skip auth for health check
		if r.URL.Path == "/health" || s.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		given := r.URL.Query().Get("token")
		if h := r.Header.Get("Authorization"); h != "" {
			given = h
		} else if given != "" {
			given = "Bearer " + given
		}

		if subtle.ConstantTimeCompare([]byte(given), []byte("Bearer "+s.token)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// handleIndex serves the control page on GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ui.WritePage(w, ui.PageData{View: s.panel.View(), Token: s.token}); err != nil {
		s.log.Error("Failed to render control page", zap.Error(err))
	}
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
	defer cancel()

	state, err := s.plane.Snapshot(ctx)
	if err != nil {
		s.log.Warn("Status unavailable", zap.Error(err))
		http.Error(w, "Control plane not responding", http.StatusServiceUnavailable)
		return
	}

	v := s.panel.View()
	writeJSON(w, http.StatusOK, protocol.StatusPayload{
		Armed:          state.Armed,
		Hotkey:         string(state.Hotkey),
		AwaitingRebind: state.AwaitingRebind,
		DelayMillis:    v.DelayMillis,
		Button:         string(v.Button),
	})
}

// handleToggle handles POST /api/toggle
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.log.Info("Toggle requested", zap.String("remote", r.RemoteAddr))
	s.panel.Toggle()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

// handleRebind handles POST /api/rebind
func (s *Server) handleRebind(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.log.Info("Rebind requested", zap.String("remote", r.RemoteAddr))
	s.panel.Rebind()
	s.hub.publish(s.hub.status())
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

// handleSettings handles GET (read) and POST (update) for delay and button
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, settingsView(s.panel.View()))

	case http.MethodPost:
		var p protocol.SettingsPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "Invalid settings data", http.StatusBadRequest)
			return
		}
		if err := applySettings(s.panel, &p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, settingsView(s.panel.View()))

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func settingsView(v ui.View) map[string]interface{} {
	return map[string]interface{}{
		"delay_ms": v.DelayMillis,
		"button":   v.Button,
	}
}
