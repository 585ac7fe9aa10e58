package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ReloadHandler invokes registered callbacks when the process receives
// SIGHUP. It is used to re-apply configuration without restarting.
type ReloadHandler struct {
	callbacks []func()
	mu        sync.Mutex
	sigCh     chan os.Signal
	done      chan struct{}
	once      sync.Once
}

// NewReloadHandler creates a new reload handler. Start must be called
// before the handler reacts to signals.
func NewReloadHandler() *ReloadHandler {
	return &ReloadHandler{
		callbacks: make([]func(), 0),
		sigCh:     make(chan os.Signal, 1),
		done:      make(chan struct{}),
	}
}

// OnReload registers a reload callback.
// Callbacks are called in registration order on each SIGHUP.
func (r *ReloadHandler) OnReload(callback func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, callback)
}

// Start begins listening for SIGHUP in a goroutine.
func (r *ReloadHandler) Start() {
	signal.Notify(r.sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-r.sigCh:
				r.runCallbacks()
			case <-r.done:
				return
			}
		}
	}()
}

// Stop stops listening for SIGHUP.
func (r *ReloadHandler) Stop() {
	r.once.Do(func() {
		signal.Stop(r.sigCh)
		close(r.done)
	})
}

// Trigger runs the reload callbacks directly, as if SIGHUP had been
// received. Used by tests and by explicit reload requests.
func (r *ReloadHandler) Trigger() {
	r.runCallbacks()
}

func (r *ReloadHandler) runCallbacks() {
	r.mu.Lock()
	callbacks := make([]func(), len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}
