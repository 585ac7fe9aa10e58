package tlsmaterial

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lumiohq/webpanel-go/internal/telemetry/logger"
)

// Watcher watches certificate and key files and notifies a callback
// when either changes. The callback typically triggers a reconcile so
// the fresh material is loaded and installed.
type Watcher struct {
	certFile string
	keyFile  string
	onChange func()
	done     chan struct{}
	log      logger.Logger

	// Debounce settings to avoid multiple reloads for one rotation
	debounce time.Duration
	pending  *time.Timer
	notifyMu sync.Mutex
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger for the watcher.
func WithLogger(log logger.Logger) WatcherOption {
	return func(w *Watcher) {
		w.log = log
	}
}

// WithDebounce sets the debounce duration.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher creates a watcher for the given material files. onChange
// is called once per burst of writes, after the files have been quiet
// for the debounce window, so a rotation touching both files yields a
// single notification covering the finished pair.
func NewWatcher(certFile, keyFile string, onChange func(), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		certFile: certFile,
		keyFile:  keyFile,
		onChange: onChange,
		done:     make(chan struct{}),
		log:      logger.Default(),
		debounce: 500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start starts watching for material changes.
// This function blocks until Stop() is called.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tlsmaterial: create watcher: %w", err)
	}

	// Watch the directories containing the cert and key files.
	// This handles vim-style renames better.
	certDir := filepath.Dir(w.certFile)
	keyDir := filepath.Dir(w.keyFile)

	if err := watcher.Add(certDir); err != nil {
		watcher.Close()
		return fmt.Errorf("tlsmaterial: watch cert dir %s: %w", certDir, err)
	}

	if keyDir != certDir {
		if err := watcher.Add(keyDir); err != nil {
			watcher.Close()
			return fmt.Errorf("tlsmaterial: watch key dir %s: %w", keyDir, err)
		}
	}

	w.log.Info("certificate watcher started",
		"cert_file", w.certFile,
		"key_file", w.keyFile,
	)

	certBase := filepath.Base(w.certFile)
	keyBase := filepath.Base(w.keyFile)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			changedBase := filepath.Base(event.Name)
			if changedBase != certBase && changedBase != keyBase {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			w.log.Debug("certificate file changed",
				"file", event.Name,
				"op", event.Op.String(),
			)

			w.debouncedNotify()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("certificate watcher error",
				"error", err,
				"cert_file", w.certFile,
			)

		case <-w.done:
			return watcher.Close()
		}
	}
}

// StartAsync starts watching in a goroutine.
func (w *Watcher) StartAsync() {
	go func() {
		if err := w.Start(); err != nil {
			w.log.Error("certificate watcher stopped with error",
				"error", err,
			)
		}
	}()
}

// Stop stops watching.
func (w *Watcher) Stop() {
	close(w.done)

	w.notifyMu.Lock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.notifyMu.Unlock()
}

// debouncedNotify schedules the callback for one debounce window after
// the latest event. Each further event pushes the timer back, so the
// callback fires once per burst, after the last write has settled.
func (w *Watcher) debouncedNotify() {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()

	if w.pending != nil {
		w.pending.Reset(w.debounce)
		return
	}
	w.pending = time.AfterFunc(w.debounce, w.onChange)
}
