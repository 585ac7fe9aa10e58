package confloader

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcher_DetectsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("panel:\n  port: 8080\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	var fired atomic.Int32
	changed := make(chan string, 4)
	w.OnChange(func(p string) {
		fired.Add(1)
		select {
		case changed <- p:
		default:
		}
	})

	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	w.StartAsync()

	// Give the watcher goroutine a moment to enter its loop
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(path, []byte("panel:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case p := <-changed:
		if filepath.Base(p) != "config.yaml" {
			t.Errorf("changed path = %q, want config.yaml", p)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}

	if fired.Load() == 0 {
		t.Error("callback should have fired at least once")
	}
}

func TestWatcher_Stop(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	w.StartAsync()
	time.Sleep(20 * time.Millisecond)

	if err := w.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
