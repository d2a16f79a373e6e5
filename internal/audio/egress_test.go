package audio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestUniquePath_NoCollision(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "web_20260101_000000_aaaaaaaa.wav")
	if got := uniquePath(p); got != p {
		t.Fatalf("expected unchanged path, got %s", got)
	}
}

func TestUniquePath_AvoidsOverwrite(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "web_20260101_000000_aaaaaaaa.wav")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	got := uniquePath(p)
	if got == p {
		t.Fatalf("expected a suffixed path, got the original %s", got)
	}
	want := filepath.Join(dir, "web_20260101_000000_aaaaaaaa-1.wav")
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestAtomicMove_SameFilesystem(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	dst := filepath.Join(dir, "dst.wav")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := atomicMove(src, dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected src to be gone, stat err = %v", err)
	}
	b, err := os.ReadFile(dst)
	if err != nil || string(b) != "payload" {
		t.Fatalf("expected dst to contain payload, got %q err=%v", b, err)
	}
}

func TestIsRealClient(t *testing.T) {
	cases := []struct {
		holder string
		want   bool
	}{
		{"", false},
		{"__server_mic__", false},
		{"external", false},
		{"aaaaaaaa", true},
	}
	for _, c := range cases {
		if got := isRealClient(c.holder); got != c.want {
			t.Errorf("isRealClient(%q) = %v, want %v", c.holder, got, c.want)
		}
	}
}
