package reqid

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	id := New()
	if !strings.HasPrefix(id, Prefix) {
		t.Errorf("New() = %q, want prefix %q", id, Prefix)
	}
	// ULID is 26 characters in Crockford base32.
	if len(id) != len(Prefix)+26 {
		t.Errorf("len(New()) = %d, want %d", len(id), len(Prefix)+26)
	}
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestNew_Monotonic(t *testing.T) {
	prev := New()
	for i := 0; i < 100; i++ {
		id := New()
		if id <= prev {
			t.Fatalf("IDs not monotonically increasing: %s then %s", prev, id)
		}
		prev = id
	}
}

func TestNew_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	ids := make(chan string, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- New()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate ID under concurrency: %s", id)
		}
		seen[id] = true
	}
}

func TestFromTime(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := FromTime(ts)
	b := FromTime(ts.Add(time.Second))
	if a >= b {
		t.Errorf("FromTime ordering broken: %s >= %s", a, b)
	}
}
