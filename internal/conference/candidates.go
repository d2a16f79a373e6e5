package conference

import (
	"log"

	"github.com/n0remac/pttbridge/internal/signaling"
)

// maxCandQueue bounds the pending-ICE-candidate buffer per spec.md §3
// ("Bounded by a sanity limit (e.g., 64); excess is dropped with a
// warning"), the same guard the teacher uses in readPumpSFU (maxCandQueue
// = 4096, scaled down here since each session owns two small PCs rather
// than one SFU-wide fan-out).
const maxCandQueue = 64

// candidateQueue buffers ICE candidates that arrive before the matching
// remote description has been applied, draining FIFO once it is. Mirrors
// the teacher's candMu/candQueue/remoteSet fields in sfu.go, pulled out
// into its own type since every PC (main and P2P) needs one.
type candidateQueue struct {
	pending   []signaling.ICECandidate
	remoteSet bool
}

func (q *candidateQueue) enqueue(c signaling.ICECandidate) {
	if q.remoteSet {
		return
	}
	if len(q.pending) >= maxCandQueue {
		log.Printf("[candidates] dropping ICE candidate: queue at sanity limit (%d)", maxCandQueue)
		return
	}
	q.pending = append(q.pending, c)
}

// drain marks the remote description as applied and returns the buffered
// candidates for the caller to add to the peer connection.
func (q *candidateQueue) drain() []signaling.ICECandidate {
	q.remoteSet = true
	out := q.pending
	q.pending = nil
	return out
}

func (q *candidateQueue) reset() {
	q.pending = nil
	q.remoteSet = false
}
