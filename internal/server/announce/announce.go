package announce

import (
	"sync"

	"github.com/lumiohq/webpanel-go/internal/telemetry/logger"
)

// ServiceName is the name the panel announces itself under.
const ServiceName = "WebPanel"

// Announcer publishes and withdraws the panel endpoint.
type Announcer interface {
	// Announce publishes the endpoint on the given port. Calling
	// Announce again replaces the previous announcement.
	Announce(port int)

	// Withdraw removes the current announcement, if any.
	Withdraw()
}

// LogAnnouncer announces the endpoint via the structured log. It is
// the default announcer; discovery protocol integrations implement the
// same interface.
type LogAnnouncer struct {
	log logger.Logger

	mu      sync.Mutex
	current int
}

// NewLogAnnouncer creates a log-backed announcer.
func NewLogAnnouncer(log logger.Logger) *LogAnnouncer {
	return &LogAnnouncer{log: log}
}

// Announce implements Announcer.
func (a *LogAnnouncer) Announce(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == port {
		return
	}
	a.current = port

	a.log.Info("service announced",
		"service", ServiceName,
		"port", port,
	)
}

// Withdraw implements Announcer.
func (a *LogAnnouncer) Withdraw() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == 0 {
		return
	}

	a.log.Info("service withdrawn",
		"service", ServiceName,
		"port", a.current,
	)
	a.current = 0
}

// Current returns the announced port, or 0.
func (a *LogAnnouncer) Current() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}
