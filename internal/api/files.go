package api

import (
	"net/http"
	"path/filepath"
	"regexp"

	"github.com/gorilla/mux"
)

// recordingName matches rec_YYYYMMDD_HHMMSS[_clientId].wav or
// web_YYYYMMDD_HHMMSS[_clientId].wav, optionally suffixed with -N on
// collision; Recorder (internal/audio/egress.go) itself only writes the
// web_ form. Anything else — in particular "../" traversal — is rejected
// per spec.md §4.10.
var recordingName = regexp.MustCompile(`^(?:rec|web)_\d{8}_\d{6}(?:_[A-Za-z0-9]+)?(?:-\d+)?\.wav$`)

// handleDownloadRecording implements GET /recordings/{name}.
func (s *Server) handleDownloadRecording(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !recordingName.MatchString(name) {
		fail(w, http.StatusBadRequest, "invalid recording name")
		return
	}
	path := filepath.Join(s.cfg.RecordingsDir, name)
	http.ServeFile(w, r, path)
}
