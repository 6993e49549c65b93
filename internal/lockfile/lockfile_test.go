package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquire_WritesPID(t *testing.T) {
	db := filepath.Join(t.TempDir(), "data", "kelp.db")

	lock, err := Acquire(db)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	content, err := os.ReadFile(PathFor(db))
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	if want := fmt.Sprintf("pid=%d\n", os.Getpid()); string(content) != want {
		t.Errorf("lock content = %q, want %q", content, want)
	}
}

func TestAcquire_Conflict(t *testing.T) {
	db := filepath.Join(t.TempDir(), "kelp.db")

	first, err := Acquire(db)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	defer first.Release()

	_, err = Acquire(db)
	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected *LockError, got %v", err)
	}
	if lockErr.Holder != fmt.Sprintf("PID %d", os.Getpid()) {
		t.Errorf("holder = %q", lockErr.Holder)
	}
	if !strings.Contains(err.Error(), "another Kelp instance") {
		t.Errorf("unexpected message %q", err.Error())
	}
	if lockErr.Unwrap() == nil {
		t.Error("expected wrapped flock error")
	}
}

func TestRelease(t *testing.T) {
	db := filepath.Join(t.TempDir(), "kelp.db")

	lock, err := Acquire(db)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(PathFor(db)); !os.IsNotExist(err) {
		t.Errorf("lock file still present: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}

	again, err := Acquire(db)
	if err != nil {
		t.Fatalf("re-Acquire after release: %v", err)
	}
	again.Release()
}

func TestSeparateDatabasesDoNotConflict(t *testing.T) {
	dir := t.TempDir()
	a, err := Acquire(filepath.Join(dir, "a.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Release()
	b, err := Acquire(filepath.Join(dir, "b.db"))
	if err != nil {
		t.Fatalf("second database should lock independently: %v", err)
	}
	defer b.Release()
}

func TestParsePID(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"pid=123\n", 123},
		{"pid=42", 42},
		{"junk\npid=7\nmore", 7},
		{"", 0},
		{"pid=abc", 0},
	}
	for _, tt := range tests {
		if got := parsePID(tt.in); got != tt.want {
			t.Errorf("parsePID(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDescribeHolder_Stale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lock")
	// Max pid on Linux is well below this.
	if err := os.WriteFile(path, []byte("pid=999999999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := describeHolder(path); got != "PID 999999999 (not running)" {
		t.Errorf("describeHolder = %q", got)
	}
	if got := describeHolder(filepath.Join(t.TempDir(), "missing")); got != "" {
		t.Errorf("missing file should describe nothing, got %q", got)
	}
}
