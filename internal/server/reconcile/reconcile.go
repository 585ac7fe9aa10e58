package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/lumiohq/webpanel-go/internal/server/announce"
	"github.com/lumiohq/webpanel-go/internal/server/config"
	"github.com/lumiohq/webpanel-go/internal/server/httpd"
	"github.com/lumiohq/webpanel-go/internal/server/portalloc"
	"github.com/lumiohq/webpanel-go/internal/server/tlsmaterial"
	"github.com/lumiohq/webpanel-go/internal/telemetry/logger"
	"github.com/lumiohq/webpanel-go/internal/telemetry/metric"
)

// ErrBusy is returned when Apply is called while a previous apply for
// the same listener is still in flight.
var ErrBusy = errors.New("reconcile: apply already in progress")

// defaultWaitTimeout bounds how long an apply waits for the listener
// to confirm a stop or start.
const defaultWaitTimeout = 5 * time.Second

// DocumentRootSink receives the resolved document root.
type DocumentRootSink interface {
	SetDocumentRoot(root string) error
	DocumentRoot() string
}

// Observers are notified of apply outcomes. Nil fields are skipped.
//
// Delivery order: on success OnStateChange(true) fires before
// OnPortChanged; on failure OnError fires before OnStateChange(false).
// OnPortChanged fires on every successful apply, including ones where
// the port did not change, so late subscribers still learn it.
type Observers struct {
	OnPortChanged func(port int)
	OnStateChange func(listening bool)
	OnError       func(msg string)
}

// Reconciler drives one listener instance toward configuration
// snapshots.
type Reconciler struct {
	listener  *httpd.Listener
	identity  *tlsmaterial.Identity
	docRoot   DocumentRootSink
	announcer announce.Announcer
	observers Observers
	metrics   *metric.Registry
	log       logger.Logger

	waitTimeout time.Duration

	busy atomic.Bool

	// prev is the last snapshot successfully applied; guarded by busy.
	prev     config.Snapshot
	havePrev bool
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithAnnouncer sets the endpoint announcer. Only the plain HTTP
// instance should carry one.
func WithAnnouncer(a announce.Announcer) Option {
	return func(r *Reconciler) {
		r.announcer = a
	}
}

// WithIdentity sets the TLS identity the listener serves. Required for
// the HTTPS instance.
func WithIdentity(id *tlsmaterial.Identity) Option {
	return func(r *Reconciler) {
		r.identity = id
	}
}

// WithObservers sets the outcome observers.
func WithObservers(o Observers) Option {
	return func(r *Reconciler) {
		r.observers = o
	}
}

// WithMetrics sets the metric registry.
func WithMetrics(m *metric.Registry) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(r *Reconciler) {
		r.log = log
	}
}

// WithWaitTimeout overrides how long Apply waits for lifecycle
// transitions to confirm.
func WithWaitTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		r.waitTimeout = d
	}
}

// New creates a reconciler for the given listener and document root
// sink.
func New(listener *httpd.Listener, docRoot DocumentRootSink, opts ...Option) *Reconciler {
	r := &Reconciler{
		listener:    listener,
		docRoot:     docRoot,
		log:         logger.Default(),
		waitTimeout: defaultWaitTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Apply drives the listener toward the snapshot. Re-applying an
// identical snapshot to a listening server performs no restart but
// still republishes the effective port.
func (r *Reconciler) Apply(ctx context.Context, snap config.Snapshot) error {
	if !r.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer r.busy.Store(false)

	inst := string(snap.Instance)
	log := r.log.With("instance", inst)

	// Identical snapshot against a live listener: nothing to restart.
	if r.havePrev && snap.Equal(r.prev) && r.listener.State() == httpd.StateListening {
		log.Debug("configuration unchanged, skipping restart")
		r.publishSuccess(r.listener.Port())
		return nil
	}

	// A port change cannot be applied to a live socket.
	if r.listener.State() == httpd.StateListening && snap.Port != r.listener.Port() {
		if err := r.stopAndWait(ctx, log); err != nil {
			return err
		}
	}

	// TLS material and document root swap in place; only handle the
	// socket when it is down.
	needStart := r.listener.State() != httpd.StateListening

	effectivePort := r.listener.Port()
	if needStart {
		port, taken, err := portalloc.FindAvailable(snap.Port)
		if err != nil {
			r.publishFailure(fmt.Sprintf("port negotiation from %d failed: %v", snap.Port, err))
			return err
		}
		for _, p := range taken {
			log.Warn("port taken, probing next", "port", p)
		}
		if len(taken) > 0 {
			log.Warn("requested port taken, adjusted",
				"requested", snap.Port,
				"effective", port,
			)
			if r.metrics != nil {
				r.metrics.PortAdjustments.Inc()
			}
		}
		effectivePort = port
	}

	if snap.UseTLS {
		r.refreshIdentity(snap, log)
	}

	r.resolveDocumentRoot(snap.DocumentRoot, log)

	if needStart {
		if err := r.startAndWait(ctx, effectivePort, log); err != nil {
			return err
		}
		if r.announcer != nil {
			r.announcer.Announce(effectivePort)
		}
	}

	r.prev = snap
	r.havePrev = true

	r.publishSuccess(effectivePort)
	return nil
}

// Shutdown stops the listener and withdraws any announcement.
func (r *Reconciler) Shutdown(ctx context.Context) error {
	if r.announcer != nil {
		r.announcer.Withdraw()
	}
	return r.listener.Stop(ctx)
}

// refreshIdentity loads TLS material per the snapshot and installs it
// when usable. Missing files fall back to the built-in identity; bad
// material keeps the previously installed identity active. With no
// identity at all the listener degrades to handshake rejection.
//
// The cert and key fall back as a pair: material is only usable as a
// matched pair, so a present cert with a missing key cannot be
// half-resolved.
func (r *Reconciler) refreshIdentity(snap config.Snapshot, log logger.Logger) {
	if r.identity == nil {
		return
	}

	crtPath, keyPath := snap.CrtPath, snap.KeyPath
	if crtPath != "" && (!fileExists(crtPath) || !fileExists(keyPath)) {
		r.publishError(fmt.Sprintf("tls material paths %s / %s missing, using built-in identity", crtPath, keyPath))
		crtPath, keyPath = "", ""
	}

	cert, report, err := tlsmaterial.Load(crtPath, keyPath, snap.KeyPassphrase)
	if err != nil {
		r.publishError(fmt.Sprintf("tls material load failed: %v", err))
		if r.metrics != nil {
			r.metrics.CertLoads.WithLabelValues("degraded").Inc()
		}
		if !r.identity.Usable() {
			log.Warn("listener will reject tls handshakes until material arrives")
		}
		return
	}

	r.identity.Install(cert)
	log.Info("tls identity installed",
		"certs_usable", report.CertsUsable,
		"certs_discarded", report.CertsDiscarded,
		"embedded", report.Embedded,
		"not_after", report.NotAfter,
	)
	if r.metrics != nil {
		r.metrics.CertLoads.WithLabelValues("usable").Inc()
		r.metrics.CertsDiscarded.Add(float64(report.CertsDiscarded))
		r.metrics.CertNotAfterOldest.Set(float64(report.NotAfter.Unix()))
	}
}

// resolveDocumentRoot forwards the configured root to the sink,
// falling back to the built-in assets when it is unusable.
func (r *Reconciler) resolveDocumentRoot(root string, log logger.Logger) {
	if root == "" {
		root = config.EmbeddedRoot
	}
	if root == r.docRoot.DocumentRoot() {
		return
	}

	if err := r.docRoot.SetDocumentRoot(root); err != nil {
		r.publishError(fmt.Sprintf("document root %s unusable: %v", root, err))
		if root != config.EmbeddedRoot {
			if err := r.docRoot.SetDocumentRoot(config.EmbeddedRoot); err != nil {
				r.publishError(fmt.Sprintf("embedded document root unusable: %v", err))
			}
		}
		return
	}

	log.Info("document root set", "root", root)
}

func (r *Reconciler) stopAndWait(ctx context.Context, log logger.Logger) error {
	log.Info("stopping listener for reconfiguration")

	// Bound the connection drain: past the deadline the listener drops
	// remaining connections instead of stalling the apply.
	drainCtx, cancel := context.WithTimeout(ctx, r.waitTimeout)
	defer cancel()

	if err := r.listener.Stop(drainCtx); err != nil {
		r.publishFailure(fmt.Sprintf("stop failed: %v", err))
		return err
	}
	if err := r.listener.WaitUntil(httpd.StateStopped, r.waitTimeout); err != nil {
		r.publishFailure(fmt.Sprintf("listener did not confirm stop: %v", err))
		return err
	}
	if r.announcer != nil {
		r.announcer.Withdraw()
	}
	return nil
}

func (r *Reconciler) startAndWait(ctx context.Context, port int, log logger.Logger) error {
	if err := r.listener.Start(ctx, port); err != nil {
		if r.metrics != nil {
			r.metrics.ListenerErrors.WithLabelValues(string(r.listener.Instance())).Inc()
		}
		r.publishFailure(fmt.Sprintf("bind port %d failed: %v", port, err))
		return err
	}
	if err := r.listener.WaitUntil(httpd.StateListening, r.waitTimeout); err != nil {
		r.publishFailure(fmt.Sprintf("listener did not confirm start: %v", err))
		return err
	}
	if r.metrics != nil {
		inst := string(r.listener.Instance())
		r.metrics.ListenerUp.WithLabelValues(inst).Set(1)
		r.metrics.ListenerPort.WithLabelValues(inst).Set(float64(port))
		r.metrics.ListenerRestarts.WithLabelValues(inst).Inc()
	}
	return nil
}

// publishSuccess notifies observers after a successful apply.
func (r *Reconciler) publishSuccess(port int) {
	if r.observers.OnStateChange != nil {
		r.observers.OnStateChange(true)
	}
	if r.observers.OnPortChanged != nil {
		r.observers.OnPortChanged(port)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// publishError reports a recoverable diagnostic.
func (r *Reconciler) publishError(msg string) {
	r.log.Error(msg)
	if r.observers.OnError != nil {
		r.observers.OnError(msg)
	}
}

// publishFailure reports a terminal apply failure: the error first,
// then the not-listening state.
func (r *Reconciler) publishFailure(msg string) {
	r.publishError(msg)
	if r.observers.OnStateChange != nil {
		r.observers.OnStateChange(false)
	}
	if r.metrics != nil {
		r.metrics.ListenerUp.WithLabelValues(string(r.listener.Instance())).Set(0)
	}
}
