package audio

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/n0remac/pttbridge/internal/config"
)

// waitDeadline bounds how long EndSession waits for the recording
// subprocess to exit before giving up (spec.md §5: "Recording-subprocess
// close is awaited with a bounded deadline (e.g., 5s)").
const waitDeadline = 5 * time.Second

// Recorder implements C9: it fans Opus packets from whoever holds the
// floor out to a speaker-playback subprocess and, for web clients, a
// WAV-recording subprocess, handling the Ogg/Opus framing itself (the
// Encoder type) and the temp-to-final rename on completion. Grounded on
// the teacher's subprocess-pipe pattern in webrtc/client.go
// (runFFmpegFileWithDetection), generalized from one sink to two.
type Recorder struct {
	mode             config.SpeakerMode
	speakerDeviceID  string
	usePythonAudio   bool
	enableLocalAudio bool
	recordingsDir    string
	tempDir          string

	// mu guards every field below: BeginSession/EndSession run on a
	// session's read goroutine, the floor sweeper, or a dashboard/VOX
	// HTTP handler, while WritePacket runs on a P2P uplink reader
	// goroutine — all of them race on the same pipes without a lock.
	mu sync.Mutex

	speaker    *pipeProc
	speakerEnc *Encoder

	rec       *pipeProc
	recEnc    *Encoder
	tempPath  string
	finalPath string
}

// NewRecorder builds a Recorder from server configuration; callers own its
// lifetime (one per server process — the floor is global, spec.md §4.1).
func NewRecorder(cfg *config.Config) *Recorder {
	return &Recorder{
		mode:             cfg.SpeakerMode(),
		speakerDeviceID:  cfg.SpeakerDeviceID,
		usePythonAudio:   cfg.UsePythonAudio,
		enableLocalAudio: cfg.EnableLocalAudio,
		recordingsDir:    cfg.RecordingsDir,
		tempDir:          cfg.RecordingsTempDir,
	}
}

// EnsureSpeaker starts the speaker subprocess if it isn't already running.
// In persistent mode this is a no-op after the first call and the caller
// invokes it once at startup; in per-session mode the caller invokes it on
// every floor grant. A no-op entirely when ENABLE_LOCAL_AUDIO is false
// (spec.md §6): no speaker hardware to drive, so WritePacket's speaker sink
// stays nil-guarded and silent.
func (r *Recorder) EnsureSpeaker() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensureSpeakerLocked()
}

func (r *Recorder) ensureSpeakerLocked() error {
	if !r.enableLocalAudio {
		return nil
	}
	if r.speaker != nil {
		return nil
	}
	proc, err := r.startSpeakerProc()
	if err != nil {
		return err
	}
	r.speaker = proc
	r.speakerEnc = NewEncoder(rand.Uint32())
	return nil
}

func (r *Recorder) startSpeakerProc() (*pipeProc, error) {
	name := "ffplay"
	args := []string{"-hide_banner", "-loglevel", "warning", "-nodisp", "-autoexit", "-i", "pipe:0"}
	if r.usePythonAudio {
		// spec.md §6: USE_PYTHON_AUDIO selects an alternate speaker
		// subprocess flavor (a small python helper rather than ffplay).
		name = "python3"
		args = []string{"-m", "pttbridge_speaker", "--device", r.speakerDeviceID}
	}
	return startPipe(name, args...)
}

// stopSpeakerLocked stops a per-session speaker subprocess; a no-op in
// persistent mode, where the same process and Encoder (and so granule
// counter) survive across floors per spec.md §4.9.
func (r *Recorder) stopSpeakerLocked() {
	if r.mode == config.SpeakerPersistent || r.speaker == nil {
		return
	}
	r.speaker.closeStdin()
	_ = r.speaker.wait(waitDeadline)
	r.speaker = nil
	r.speakerEnc = nil
}

// BeginSession opens a new recording slot for clientID (spec.md §4.9):
// names the temp/final paths, spawns the WAV-writing transcoder, and (in
// per-session mode) starts the speaker subprocess.
func (r *Recorder) BeginSession(clientID string, when time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stamp := when.UTC().Format("20060102_150405")
	tempName := fmt.Sprintf("recording_%s_%s.wav", stamp, clientID)
	finalName := fmt.Sprintf("web_%s_%s.wav", stamp, clientID)

	if err := os.MkdirAll(r.tempDir, 0o755); err != nil {
		return fmt.Errorf("audio: creating temp dir: %w", err)
	}
	if err := os.MkdirAll(r.recordingsDir, 0o755); err != nil {
		return fmt.Errorf("audio: creating recordings dir: %w", err)
	}

	r.tempPath = filepath.Join(r.tempDir, tempName)
	r.finalPath = uniquePath(filepath.Join(r.recordingsDir, finalName))

	proc, err := startPipe("ffmpeg",
		"-hide_banner", "-loglevel", "warning", "-y",
		"-f", "ogg", "-i", "pipe:0",
		"-ar", "44100", "-ac", "1",
		r.tempPath,
	)
	if err != nil {
		return err
	}
	r.rec = proc
	r.recEnc = NewEncoder(rand.Uint32())

	if r.mode == config.SpeakerPerSession {
		if err := r.ensureSpeakerLocked(); err != nil {
			log.Printf("[egress] speaker subprocess failed to start: %v", err)
		}
	}
	return nil
}

// WritePacket feeds one Opus payload (spec.md §4.9 steps 1-3): on first
// payload for either pipe it writes OpusHead/OpusTags, then always writes
// a data page with a monotonically advancing granule to both sinks.
func (r *Recorder) WritePacket(opusPacket []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.speakerEnc != nil && r.speaker != nil {
		writeFrame(r.speaker, r.speakerEnc, opusPacket, "speaker")
	}
	if r.recEnc != nil && r.rec != nil {
		writeFrame(r.rec, r.recEnc, opusPacket, "recorder")
	}
}

func writeFrame(proc *pipeProc, enc *Encoder, packet []byte, tag string) {
	if !enc.HeaderWritten() {
		for _, page := range enc.HeaderPages() {
			if err := proc.write(page, writeTimeout); err != nil {
				log.Printf("[egress] %s header write failed: %v", tag, err)
				return
			}
		}
	}
	if err := proc.write(enc.DataPage(packet), writeTimeout); err != nil {
		log.Printf("[egress] %s data write failed: %v", tag, err)
	}
}

// EndSession closes the recording slot on floor release or timeout
// (spec.md §4.9/§7): half-closes the recorder's stdin, waits up to
// waitDeadline for it to exit, then atomically moves the temp file into
// the recordings directory. If the subprocess never produced bytes, the
// temp file is dropped rather than published (spec.md §7, "Subprocess
// failure... the in-flight recording is finalized if its temp file has
// bytes, dropped otherwise").
func (r *Recorder) EndSession() (finalPath string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.stopSpeakerLocked()

	if r.rec == nil {
		return "", nil
	}
	proc := r.rec
	tempPath, finalDest := r.tempPath, r.finalPath
	r.rec, r.recEnc, r.tempPath, r.finalPath = nil, nil, "", ""

	_ = proc.closeStdin()
	if waitErr := proc.wait(waitDeadline); waitErr != nil {
		log.Printf("[egress] recorder subprocess did not exit within %s: %v", waitDeadline, waitErr)
		proc.kill()
	}

	info, statErr := os.Stat(tempPath)
	if statErr != nil || info.Size() == 0 {
		os.Remove(tempPath)
		return "", nil
	}

	if err := atomicMove(tempPath, finalDest); err != nil {
		return "", err
	}
	return finalDest, nil
}

// uniquePath appends "-N" before the extension until the path doesn't
// already exist, per spec.md §7 ("rename collision: retry with a -N
// suffix; never overwrite existing recordings").
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s-%d%s", base, n, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// atomicMove renames src to dst, falling back to copy-and-unlink when the
// two paths live on different filesystems (spec.md §4.9).
func atomicMove(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
