// Package api implements the VOX/Dashboard HTTP surface (C10, spec.md
// §4.10): a small JSON API plus a whitelisted recordings file server.
// Routing and CORS follow the gmiroshnykov-ai-voicechat-playground
// server's gorilla/mux + rs/cors idiom, the clearest example of this
// exact stack in the retrieved pack.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/n0remac/pttbridge/internal/config"
	"github.com/n0remac/pttbridge/internal/conference"
	"github.com/n0remac/pttbridge/internal/store"
)

// Server wires the dashboard/VOX HTTP surface to a running Conference.
type Server struct {
	conf     *conference.Conference
	cfg      *config.Config
	sessions *store.DashboardSessions
}

// NewServer builds the API; Router returns the http.Handler to mount
// alongside the WebSocket upgrade endpoint.
func NewServer(conf *conference.Conference, cfg *config.Config, sessions *store.DashboardSessions) *Server {
	return &Server{conf: conf, cfg: cfg, sessions: sessions}
}

// Router builds the full CORS-wrapped mux.Router.
func (s *Server) Router() http.Handler {
	// Match on the escaped path so an encoded "../" stays inside {name} and
	// reaches the whitelist check instead of being cleaned into a redirect.
	r := mux.NewRouter().UseEncodedPath()

	r.HandleFunc("/api/vox/on", s.handleVoxOn).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/vox/off", s.handleVoxOff).Methods("POST", "OPTIONS")

	r.HandleFunc("/api/dash/login", s.handleLogin).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/dash/logout", s.requireAuth(s.handleLogout)).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/dash/status", s.requireAuth(s.handleStatus)).Methods("GET")
	r.HandleFunc("/api/dash/clients", s.requireAuth(s.handleClients)).Methods("GET")
	r.HandleFunc("/api/dash/ptt", s.requireAuth(s.handlePTTStatus)).Methods("GET")
	r.HandleFunc("/api/dash/ptt/release", s.requireAuth(s.handlePTTForceRelease)).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/dash/clients/{id}/disconnect", s.requireAuth(s.handleDisconnectClient)).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/dash/restart", s.requireAuth(s.handleRestart)).Methods("POST", "OPTIONS")

	r.HandleFunc("/recordings/{name}", s.requireAuth(s.handleDownloadRecording)).Methods("GET")

	mw := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})
	return mw.Handler(r)
}

// response is the uniform JSON envelope every endpoint returns, per
// spec.md §4.10: "all returning JSON {success, ...}".
type response struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, response{Success: true, Data: data})
}

func fail(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, response{Success: false, Reason: reason})
}

// requireAuth enforces the bearer-token contract from spec.md §4.10: "a
// bearer header on every authenticated call."
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if !s.sessions.Valid(token) {
			fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
