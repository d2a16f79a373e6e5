package floor_test

import (
	"sync"
	"testing"
	"time"

	"github.com/n0remac/pttbridge/internal/floor"
)

func TestRequestFloor_Exclusivity(t *testing.T) {
	t.Parallel()
	a := floor.New(0)

	granted, holder, _ := a.RequestFloor("aaaaaaaa")
	if !granted || holder != "aaaaaaaa" {
		t.Fatalf("expected grant to aaaaaaaa, got granted=%v holder=%s", granted, holder)
	}

	granted, holder, _ = a.RequestFloor("bbbbbbbb")
	if granted {
		t.Fatalf("expected busy, got granted")
	}
	if holder != "aaaaaaaa" {
		t.Fatalf("expected current holder aaaaaaaa, got %s", holder)
	}
}

func TestReleaseFloor_MismatchIgnored(t *testing.T) {
	t.Parallel()
	a := floor.New(0)
	a.RequestFloor("aaaaaaaa")

	if released := a.ReleaseFloor("bbbbbbbb"); released {
		t.Fatalf("expected mismatched release to be ignored")
	}
	snap := a.Snapshot()
	if snap.Holder != "aaaaaaaa" {
		t.Fatalf("expected aaaaaaaa to still hold the floor, got %q", snap.Holder)
	}

	if released := a.ReleaseFloor("aaaaaaaa"); !released {
		t.Fatalf("expected matching release to succeed")
	}
	if snap := a.Snapshot(); !snap.IsIdle() {
		t.Fatalf("expected idle floor after release")
	}
}

func TestSweepTimeout(t *testing.T) {
	t.Parallel()
	a := floor.New(20 * time.Millisecond)
	a.RequestFloor("aaaaaaaa")

	if _, ok := a.SweepTimeout(); ok {
		t.Fatalf("expected no eviction before timeout")
	}
	time.Sleep(30 * time.Millisecond)
	evicted, ok := a.SweepTimeout()
	if !ok || evicted != "aaaaaaaa" {
		t.Fatalf("expected eviction of aaaaaaaa, got %q ok=%v", evicted, ok)
	}
	if snap := a.Snapshot(); !snap.IsIdle() {
		t.Fatalf("expected idle after sweep")
	}
}

func TestForceRelease(t *testing.T) {
	t.Parallel()
	a := floor.New(0)
	if _, held := a.ForceRelease(); held {
		t.Fatalf("expected no holder on empty force release")
	}
	a.RequestFloor("aaaaaaaa")
	evicted, held := a.ForceRelease()
	if !held || evicted != "aaaaaaaa" {
		t.Fatalf("expected force release to evict aaaaaaaa")
	}
}

func TestConcurrentRequests_OnlyOneWinner(t *testing.T) {
	t.Parallel()
	a := floor.New(0)
	const n = 50
	var wg sync.WaitGroup
	wins := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		id := string(rune('a' + i%26))
		go func(id string) {
			defer wg.Done()
			if granted, _, _ := a.RequestFloor(id); granted {
				wins <- id
			}
		}(id)
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one winner, got %d", count)
	}
}
