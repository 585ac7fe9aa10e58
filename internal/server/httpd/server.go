package httpd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/lumiohq/webpanel-go/internal/server/config"
	"github.com/lumiohq/webpanel-go/internal/server/tlsmaterial"
	"github.com/lumiohq/webpanel-go/internal/telemetry/logger"
)

// State is a listener lifecycle state.
type State int

const (
	// StateStopped means no socket is bound.
	StateStopped State = iota

	// StateListening means the socket is bound and serving.
	StateListening

	// StateError means the last start or serve attempt failed.
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateListening:
		return "listening"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event describes a lifecycle transition.
type Event struct {
	Instance config.Instance
	State    State
	Port     int
	Err      error
}

// ErrWaitTimeout is returned by WaitUntil when the target state is not
// reached in time.
var ErrWaitTimeout = errors.New("httpd: timed out waiting for listener state")

// session is one bound socket and its serving goroutine.
type session struct {
	srv  *http.Server
	ln   net.Listener
	done chan struct{}
}

// Listener runs one HTTP or HTTPS server with explicit lifecycle.
type Listener struct {
	instance config.Instance
	handler  http.Handler
	identity *tlsmaterial.Identity
	log      logger.Logger

	mu        sync.Mutex
	state     State
	port      int
	lastErr   error
	sess      *session
	changed   chan struct{}
	callbacks []func(Event)
}

// Option configures a Listener.
type Option func(*Listener)

// WithIdentity makes the listener serve TLS with the given identity.
func WithIdentity(id *tlsmaterial.Identity) Option {
	return func(l *Listener) {
		l.identity = id
	}
}

// WithLogger sets the listener logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Listener) {
		l.log = log
	}
}

// New creates a stopped listener for the given instance.
func New(instance config.Instance, handler http.Handler, opts ...Option) *Listener {
	l := &Listener{
		instance: instance,
		handler:  handler,
		log:      logger.Default(),
		changed:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// OnEvent registers a callback invoked synchronously on every
// transition. Callbacks must not call back into the listener.
func (l *Listener) OnEvent(cb func(Event)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = append(l.callbacks, cb)
}

// State returns the current lifecycle state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Port returns the bound port, or 0 when stopped.
func (l *Listener) Port() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port
}

// Err returns the error from the last failed start or serve.
func (l *Listener) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Instance returns the instance name.
func (l *Listener) Instance() config.Instance {
	return l.instance
}

// Start binds the port and begins serving. A listener that is already
// serving is stopped first, so Start always results in exactly one
// bound socket.
func (l *Listener) Start(ctx context.Context, port int) error {
	l.mu.Lock()
	if l.sess != nil {
		sess := l.sess
		l.mu.Unlock()
		if err := l.Stop(ctx); err != nil {
			return err
		}
		<-sess.done
		l.mu.Lock()
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		l.lastErr = err
		l.transitionLocked(StateError, 0, err)
		l.mu.Unlock()
		return fmt.Errorf("httpd: bind port %d: %w", port, err)
	}

	if l.identity != nil {
		ln = tls.NewListener(ln, l.identity.TLSConfig())
	}

	sess := &session{
		srv:  &http.Server{Handler: l.handler, ReadHeaderTimeout: 10 * time.Second},
		ln:   ln,
		done: make(chan struct{}),
	}
	l.sess = sess
	l.lastErr = nil
	l.transitionLocked(StateListening, port, nil)
	l.mu.Unlock()

	l.log.Info("listener started",
		"instance", string(l.instance),
		"port", port,
		"tls", l.identity != nil,
	)

	go l.serve(sess)
	return nil
}

// serve runs until the session's server is closed or fails.
func (l *Listener) serve(sess *session) {
	err := sess.srv.Serve(sess.ln)
	close(sess.done)

	if errors.Is(err, http.ErrServerClosed) {
		return
	}

	// Socket died underneath us
	l.mu.Lock()
	if l.sess == sess {
		l.sess = nil
		l.lastErr = err
		l.transitionLocked(StateError, 0, err)
	}
	l.mu.Unlock()

	l.log.Error("listener failed",
		"instance", string(l.instance),
		"error", err,
	)
}

// Stop shuts the listener down. Stopping a stopped listener is a
// no-op; repeated calls observe the same final state.
func (l *Listener) Stop(ctx context.Context) error {
	l.mu.Lock()
	sess := l.sess
	if sess == nil {
		// Clear a stale error state so the machine settles on stopped
		if l.state == StateError {
			l.transitionLocked(StateStopped, 0, nil)
		}
		l.mu.Unlock()
		return nil
	}
	l.sess = nil
	l.mu.Unlock()

	err := sess.srv.Shutdown(ctx)
	if err != nil {
		// Drain deadline hit; drop remaining connections
		sess.srv.Close()
	}
	<-sess.done

	l.mu.Lock()
	l.transitionLocked(StateStopped, 0, nil)
	l.mu.Unlock()

	l.log.Info("listener stopped", "instance", string(l.instance))
	return nil
}

// WaitUntil blocks until the listener reaches the target state or the
// timeout elapses.
func (l *Listener) WaitUntil(target State, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		l.mu.Lock()
		if l.state == target {
			l.mu.Unlock()
			return nil
		}
		ch := l.changed
		l.mu.Unlock()

		select {
		case <-ch:
		case <-deadline.C:
			return fmt.Errorf("%w: want %s, have %s", ErrWaitTimeout, target, l.State())
		}
	}
}

// transitionLocked records a state change and wakes waiters.
// Caller holds l.mu.
func (l *Listener) transitionLocked(state State, port int, err error) {
	l.state = state
	l.port = port

	close(l.changed)
	l.changed = make(chan struct{})

	ev := Event{Instance: l.instance, State: state, Port: port, Err: err}
	callbacks := make([]func(Event), len(l.callbacks))
	copy(callbacks, l.callbacks)

	// Callbacks run under the lock so they observe transitions in
	// order. They must be short and must not re-enter the listener.
	for _, cb := range callbacks {
		cb(ev)
	}
}
