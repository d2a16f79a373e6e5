package conference

import (
	"testing"

	"github.com/n0remac/pttbridge/internal/signaling"
)

func TestCandidateQueue_BuffersUntilDrain(t *testing.T) {
	var q candidateQueue
	q.enqueue(signaling.ICECandidate{Candidate: "a"})
	q.enqueue(signaling.ICECandidate{Candidate: "b"})

	if q.remoteSet {
		t.Fatal("expected remoteSet false before drain")
	}

	drained := q.drain()
	if len(drained) != 2 || drained[0].Candidate != "a" || drained[1].Candidate != "b" {
		t.Fatalf("expected [a b] in order, got %v", drained)
	}
	if !q.remoteSet {
		t.Fatal("expected remoteSet true after drain")
	}
}

func TestCandidateQueue_IgnoresAfterRemoteSet(t *testing.T) {
	var q candidateQueue
	q.drain() // marks remoteSet
	q.enqueue(signaling.ICECandidate{Candidate: "late"})
	if len(q.pending) != 0 {
		t.Fatalf("expected no buffering once remoteSet, got %v", q.pending)
	}
}

func TestCandidateQueue_BoundedBySanityLimit(t *testing.T) {
	var q candidateQueue
	for i := 0; i < maxCandQueue+10; i++ {
		q.enqueue(signaling.ICECandidate{Candidate: "c"})
	}
	if len(q.pending) != maxCandQueue {
		t.Fatalf("expected queue capped at %d, got %d", maxCandQueue, len(q.pending))
	}
}

func TestCandidateQueue_Reset(t *testing.T) {
	var q candidateQueue
	q.enqueue(signaling.ICECandidate{Candidate: "a"})
	q.drain()
	q.reset()
	if q.remoteSet || len(q.pending) != 0 {
		t.Fatal("expected reset to clear remoteSet and pending")
	}
}
