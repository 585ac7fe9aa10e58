package reconcile

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/lumiohq/webpanel-go/internal/server/announce"
	"github.com/lumiohq/webpanel-go/internal/server/config"
	"github.com/lumiohq/webpanel-go/internal/server/httpd"
	"github.com/lumiohq/webpanel-go/internal/server/staticserve"
	"github.com/lumiohq/webpanel-go/internal/server/tlsmaterial"
	"github.com/lumiohq/webpanel-go/internal/telemetry/logger"
)

// recorder collects observer notifications for assertions.
type recorder struct {
	mu     sync.Mutex
	ports  []int
	states []bool
	errs   []string
}

func (rec *recorder) observers() Observers {
	return Observers{
		OnPortChanged: func(p int) {
			rec.mu.Lock()
			rec.ports = append(rec.ports, p)
			rec.mu.Unlock()
		},
		OnStateChange: func(l bool) {
			rec.mu.Lock()
			rec.states = append(rec.states, l)
			rec.mu.Unlock()
		},
		OnError: func(msg string) {
			rec.mu.Lock()
			rec.errs = append(rec.errs, msg)
			rec.mu.Unlock()
		},
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func httpSnapshot(port int) config.Snapshot {
	return config.Snapshot{
		Instance:     config.InstanceHTTP,
		DocumentRoot: config.EmbeddedRoot,
		Port:         port,
	}
}

// lifecycleCounter counts raw listener transitions.
type lifecycleCounter struct {
	mu      sync.Mutex
	started int
	stopped int
}

func (c *lifecycleCounter) attach(l *httpd.Listener) {
	l.OnEvent(func(ev httpd.Event) {
		c.mu.Lock()
		switch ev.State {
		case httpd.StateListening:
			c.started++
		case httpd.StateStopped:
			c.stopped++
		}
		c.mu.Unlock()
	})
}

func newHTTPReconciler(t *testing.T, rec *recorder, opts ...Option) (*Reconciler, *httpd.Listener, *lifecycleCounter) {
	t.Helper()

	docs := staticserve.New()
	listener := httpd.New(config.InstanceHTTP, docs)
	counter := &lifecycleCounter{}
	counter.attach(listener)

	all := append([]Option{WithObservers(rec.observers())}, opts...)
	r := New(listener, docs, all...)

	t.Cleanup(func() {
		listener.Stop(context.Background())
	})

	return r, listener, counter
}

func TestApply_StartsListener(t *testing.T) {
	rec := &recorder{}
	r, listener, _ := newHTTPReconciler(t, rec)
	port := freePort(t)

	if err := r.Apply(context.Background(), httpSnapshot(port)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if listener.State() != httpd.StateListening {
		t.Errorf("state = %s, want listening", listener.State())
	}
	if listener.Port() != port {
		t.Errorf("port = %d, want %d", listener.Port(), port)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.states) != 1 || !rec.states[0] {
		t.Errorf("states = %v, want [true]", rec.states)
	}
	if len(rec.ports) != 1 || rec.ports[0] != port {
		t.Errorf("ports = %v, want [%d]", rec.ports, port)
	}
}

func TestApply_IdenticalSnapshotIsIdempotent(t *testing.T) {
	rec := &recorder{}
	r, _, counter := newHTTPReconciler(t, rec)
	port := freePort(t)
	snap := httpSnapshot(port)

	if err := r.Apply(context.Background(), snap); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	if err := r.Apply(context.Background(), snap); err != nil {
		t.Fatalf("second Apply: %v", err)
	}

	counter.mu.Lock()
	if counter.started != 1 {
		t.Errorf("listening transitions = %d, want exactly 1", counter.started)
	}
	if counter.stopped != 0 {
		t.Errorf("stop transitions = %d, want 0", counter.stopped)
	}
	counter.mu.Unlock()

	// The effective port is republished on every apply, even when
	// nothing changed.
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.ports) != 2 || rec.ports[0] != port || rec.ports[1] != port {
		t.Errorf("ports = %v, want [%d %d]", rec.ports, port, port)
	}
}

func TestApply_PortChangeRestartsOnce(t *testing.T) {
	rec := &recorder{}
	r, listener, counter := newHTTPReconciler(t, rec)
	first := freePort(t)
	second := freePort(t)

	if err := r.Apply(context.Background(), httpSnapshot(first)); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	if err := r.Apply(context.Background(), httpSnapshot(second)); err != nil {
		t.Fatalf("second Apply: %v", err)
	}

	if listener.Port() != second {
		t.Errorf("port = %d, want %d", listener.Port(), second)
	}

	counter.mu.Lock()
	defer counter.mu.Unlock()
	if counter.stopped != 1 {
		t.Errorf("stop transitions = %d, want exactly 1", counter.stopped)
	}
	if counter.started != 2 {
		t.Errorf("listening transitions = %d, want exactly 2", counter.started)
	}
}

func TestApply_PortChangeDrainsBounded(t *testing.T) {
	// A client holding a request open must not stall a port change
	// past the drain deadline.
	entered := make(chan struct{})
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	})

	docs := staticserve.New()
	listener := httpd.New(config.InstanceHTTP, handler)
	rec := &recorder{}
	r := New(listener, docs,
		WithObservers(rec.observers()),
		WithWaitTimeout(500*time.Millisecond),
	)
	t.Cleanup(func() { listener.Stop(context.Background()) })

	first := freePort(t)
	if err := r.Apply(context.Background(), httpSnapshot(first)); err != nil {
		t.Fatalf("first Apply: %v", err)
	}

	inflight := make(chan error, 1)
	go func() {
		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/", first))
		if resp != nil {
			resp.Body.Close()
		}
		inflight <- err
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("request did not reach the handler")
	}

	second := freePort(t)
	done := make(chan error, 1)
	go func() { done <- r.Apply(context.Background(), httpSnapshot(second)) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("port-change Apply: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("port-change apply stalled behind an open connection")
	}

	if listener.Port() != second {
		t.Errorf("port = %d, want %d", listener.Port(), second)
	}

	close(release)
	<-inflight
}

func TestApply_NegotiatesOccupiedPort(t *testing.T) {
	blocker, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("block port: %v", err)
	}
	defer blocker.Close()
	requested := blocker.Addr().(*net.TCPAddr).Port

	rec := &recorder{}
	r, listener, _ := newHTTPReconciler(t, rec)

	if err := r.Apply(context.Background(), httpSnapshot(requested)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if listener.Port() <= requested {
		t.Errorf("effective port = %d, want above requested %d", listener.Port(), requested)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.ports) != 1 || rec.ports[0] != listener.Port() {
		t.Errorf("ports = %v, want the effective port %d", rec.ports, listener.Port())
	}
}

func TestApply_Busy(t *testing.T) {
	rec := &recorder{}
	r, _, _ := newHTTPReconciler(t, rec)

	r.busy.Store(true)
	err := r.Apply(context.Background(), httpSnapshot(freePort(t)))
	if !errors.Is(err, ErrBusy) {
		t.Errorf("Apply error = %v, want ErrBusy", err)
	}
	r.busy.Store(false)
}

func TestApply_DocumentRootFallback(t *testing.T) {
	rec := &recorder{}
	r, _, _ := newHTTPReconciler(t, rec)
	port := freePort(t)

	snap := httpSnapshot(port)
	snap.DocumentRoot = "/nonexistent/panel/root"

	if err := r.Apply(context.Background(), snap); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if got := r.docRoot.DocumentRoot(); got != config.EmbeddedRoot {
		t.Errorf("document root = %q, want embedded fallback", got)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errs) == 0 {
		t.Error("bad document root should surface via OnError")
	}
}

func TestApply_AnnouncesEffectivePort(t *testing.T) {
	rec := &recorder{}
	ann := announce.NewLogAnnouncer(logger.Default())
	r, listener, _ := newHTTPReconciler(t, rec, WithAnnouncer(ann))
	port := freePort(t)

	if err := r.Apply(context.Background(), httpSnapshot(port)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if ann.Current() != listener.Port() {
		t.Errorf("announced port = %d, want %d", ann.Current(), listener.Port())
	}

	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if ann.Current() != 0 {
		t.Error("announcement should be withdrawn on shutdown")
	}
	if listener.State() != httpd.StateStopped {
		t.Errorf("state = %s, want stopped after shutdown", listener.State())
	}
}

func TestApply_TLSWithEmbeddedIdentity(t *testing.T) {
	docs := staticserve.New()
	id := tlsmaterial.NewIdentity()
	listener := httpd.New(config.InstanceHTTPS, docs, httpd.WithIdentity(id))
	rec := &recorder{}
	r := New(listener, docs, WithIdentity(id), WithObservers(rec.observers()))
	t.Cleanup(func() { listener.Stop(context.Background()) })

	port := freePort(t)
	snap := config.Snapshot{
		Instance:     config.InstanceHTTPS,
		DocumentRoot: config.EmbeddedRoot,
		Port:         port,
		UseTLS:       true,
	}

	if err := r.Apply(context.Background(), snap); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if !id.Usable() {
		t.Fatal("embedded identity should be installed")
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		Timeout: 2 * time.Second,
	}
	resp, err := client.Get(fmt.Sprintf("https://127.0.0.1:%d/", listener.Port()))
	if err != nil {
		t.Fatalf("GET over TLS: %v", err)
	}
	resp.Body.Close()
}

func TestApply_TLSMissingMaterialFallsBack(t *testing.T) {
	docs := staticserve.New()
	id := tlsmaterial.NewIdentity()
	listener := httpd.New(config.InstanceHTTPS, docs, httpd.WithIdentity(id))
	rec := &recorder{}
	r := New(listener, docs, WithIdentity(id), WithObservers(rec.observers()))
	t.Cleanup(func() { listener.Stop(context.Background()) })

	snap := config.Snapshot{
		Instance:     config.InstanceHTTPS,
		DocumentRoot: config.EmbeddedRoot,
		Port:         freePort(t),
		UseTLS:       true,
		KeyPath:      "/nonexistent/panel.key",
		CrtPath:      "/nonexistent/panel.crt",
	}

	if err := r.Apply(context.Background(), snap); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// Missing custom material falls back to the built-in identity and
	// reports the substitution.
	if !id.Usable() {
		t.Error("built-in identity should be installed as fallback")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errs) == 0 {
		t.Error("missing material should surface via OnError")
	}
}

func TestApply_SwitchToNewPortAfterStop(t *testing.T) {
	// Applying to a stopped listener always negotiates and starts.
	rec := &recorder{}
	r, listener, _ := newHTTPReconciler(t, rec)
	port := freePort(t)

	if err := r.Apply(context.Background(), httpSnapshot(port)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := listener.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Same snapshot, but the listener is down: apply must bring it back.
	if err := r.Apply(context.Background(), httpSnapshot(port)); err != nil {
		t.Fatalf("re-Apply: %v", err)
	}
	if listener.State() != httpd.StateListening {
		t.Errorf("state = %s, want listening after re-apply", listener.State())
	}
}
