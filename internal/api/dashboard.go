package api

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gorilla/mux"
)

var processStart = time.Now()

type loginRequest struct {
	Password string `json:"password"`
}

// handleLogin implements POST /api/dash/login (spec.md §4.10).
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid body")
		return
	}
	if s.cfg.DashPassword == "" || req.Password != s.cfg.DashPassword {
		// spec.md §7: "Auth failure... 401, no further action; no account
		// lockout."
		fail(w, http.StatusUnauthorized, "bad password")
		return
	}
	token, err := s.sessions.Issue()
	if err != nil {
		fail(w, http.StatusInternalServerError, "could not issue session")
		return
	}
	ok(w, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Revoke(bearerToken(r))
	ok(w, nil)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	st := s.conf.FloorSnapshot()
	p2pCount := 0
	for _, c := range s.conf.ClientSnapshots() {
		if c.P2PState == "connected" {
			p2pCount++
		}
	}

	ok(w, map[string]any{
		"uptimeSeconds": int(time.Since(processStart).Seconds()),
		"clientCount":   s.conf.ClientCount(),
		"p2pCount":      p2pCount,
		"heapAllocBytes": mem.HeapAlloc,
		"floorHolder":   st.Holder,
		"floorIdle":     st.IsIdle(),
	})
}

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	ok(w, s.conf.ClientSnapshots())
}

func (s *Server) handlePTTStatus(w http.ResponseWriter, r *http.Request) {
	st := s.conf.FloorSnapshot()
	ok(w, map[string]any{
		"holder": st.Holder,
		"idle":   st.IsIdle(),
	})
}

// handlePTTForceRelease implements POST /api/dash/ptt/release (spec.md
// §4.10): "unconditional clear of the floor, relay off, recording
// stopped, playback paused; broadcast fresh status." The relay/recorder
// side effects run inside Conference.onFloorReleased, invoked by
// ForceReleaseFloor.
func (s *Server) handlePTTForceRelease(w http.ResponseWriter, r *http.Request) {
	s.conf.ForceReleaseFloor()
	ok(w, nil)
}

func (s *Server) handleDisconnectClient(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.conf.DisconnectClient(id) {
		fail(w, http.StatusNotFound, "unknown client")
		return
	}
	ok(w, nil)
}

// handleRestart implements POST /api/dash/restart: "write a graceful-exit
// intent and terminate (external supervisor relaunches)."
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	ok(w, nil)
	go func() {
		time.Sleep(200 * time.Millisecond) // let the response flush
		_ = os.WriteFile(".restart-intent", []byte(time.Now().Format(time.RFC3339)), 0o644)
		os.Exit(0)
	}()
}

// handleVoxOn implements POST /api/vox/on (spec.md §4.10).
func (s *Server) handleVoxOn(w http.ResponseWriter, r *http.Request) {
	granted, reason := s.conf.RequestExternalFloor()
	if !granted {
		fail(w, http.StatusConflict, reason)
		return
	}
	ok(w, nil)
}

// handleVoxOff implements POST /api/vox/off.
func (s *Server) handleVoxOff(w http.ResponseWriter, r *http.Request) {
	s.conf.ReleaseExternalFloor()
	ok(w, nil)
}
