package audio

import (
	"io"
	"log"
	"os/exec"
	"time"
)

// pipeProc wraps a spawned transcoder/recorder subprocess, following the
// teacher's runFFmpegFileWithDetection style (exec.Command, StdinPipe,
// explicit Stdout/Stderr wiring) generalized into a reusable handle so the
// ingress and egress components can spawn, feed, and tear one down without
// duplicating process bookkeeping.
type pipeProc struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	name   string
}

// startPipe runs name with args, wiring stdin/stdout as pipes and stderr to
// the server log (tagged, per the teacher's log.Printf convention).
func startPipe(name string, args ...string) (*pipeProc, error) {
	cmd := exec.Command(name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = &logWriter{tag: name}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &pipeProc{cmd: cmd, stdin: stdin, stdout: stdout, name: name}, nil
}

// writeDeadline bounds a single stdin write per spec.md §5 ("subprocess
// stdin writes: apply a small write deadline; drop the frame on timeout
// rather than back up the RTP pipeline"). os/exec pipes don't expose
// SetWriteDeadline, so the bound is applied with a background goroutine
// racing the write against a timer; on timeout the process is considered
// wedged and reported to the caller to restart on the next floor grant.
func (p *pipeProc) write(b []byte, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		_, err := p.stdin.Write(b)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return errWriteTimeout
	}
}

// closeStdin half-closes stdin so the subprocess can flush and exit on its
// own (spec.md §4.9: "stdin is half-closed on the recording subprocess").
func (p *pipeProc) closeStdin() error {
	return p.stdin.Close()
}

// wait blocks until the subprocess exits or the deadline elapses, per
// spec.md §5 ("Recording-subprocess close is awaited with a bounded
// deadline (e.g., 5s); exceeding it is logged").
func (p *pipeProc) wait(deadline time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(deadline):
		return errWaitTimeout
	}
}

func (p *pipeProc) kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

type logWriter struct{ tag string }

func (w *logWriter) Write(p []byte) (int, error) {
	log.Printf("[%s] %s", w.tag, p)
	return len(p), nil
}

type pipeError string

func (e pipeError) Error() string { return string(e) }

const (
	errWriteTimeout = pipeError("audio: subprocess stdin write timed out")
	errWaitTimeout  = pipeError("audio: subprocess wait timed out")
	errFloorBusy    = pipeError("audio: server mic could not claim the floor")
)
