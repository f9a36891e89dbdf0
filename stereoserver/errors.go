package stereoserver

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by Send when no peer is connected. No I/O
	// is attempted; callers may fall back to local storage.
	ErrNotConnected = errors.New("no peer connected")
	// ErrAlreadyRunning is returned by Start on a running listener.
	ErrAlreadyRunning = errors.New("listener already running")
	// ErrStopTimeout is returned by Stop when background goroutines did not
	// finish within Config.StopTimeout.
	ErrStopTimeout = errors.New("timed out waiting for listener goroutines")
)

// TransportError reports a failed write to the peer. The session has
// already been torn down when it is returned.
type TransportError struct {
	Op      string
	Session string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s to session %s failed: %v", e.Op, e.Session, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
