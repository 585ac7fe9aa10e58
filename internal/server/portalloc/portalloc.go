package portalloc

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// maxPort is the highest valid TCP port.
const maxPort = 65535

// ErrNoPortAvailable is returned when no free port exists between the
// requested port and the top of the port range.
var ErrNoPortAvailable = errors.New("portalloc: no available port in range")

// Probe reports whether the given TCP port can be bound on all interfaces.
// The probe listener is closed immediately; the port is not reserved.
func Probe(port int) (bool, error) {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		if isAddrInUse(err) {
			return false, nil
		}
		return false, err
	}
	_ = l.Close()
	return true, nil
}

// FindAvailable returns the first bindable port at or above the
// requested port, along with the occupied ports probed on the way so
// the caller can report each collision.
//
// A probe that fails for a reason other than the port being taken
// (for example a permission error on a privileged port) aborts the
// search; incrementing past it would mask a configuration problem.
func FindAvailable(port int) (int, []int, error) {
	if port < 1 || port > maxPort {
		return 0, nil, fmt.Errorf("portalloc: port %d out of range", port)
	}

	var taken []int
	for p := port; p <= maxPort; p++ {
		free, err := Probe(p)
		if err != nil {
			return 0, taken, fmt.Errorf("portalloc: probe port %d: %w", p, err)
		}
		if !free {
			taken = append(taken, p)
			continue
		}
		return p, taken, nil
	}

	return 0, taken, ErrNoPortAvailable
}

// isAddrInUse reports whether err indicates the address is taken.
func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}
