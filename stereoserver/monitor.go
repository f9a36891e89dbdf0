package stereoserver

import (
	"errors"
	"os"
	"time"
)

// monitor watches one session until the peer goes away or the listener
// stops. It never consumes data: Peek leaves any bytes in the session's
// buffered reader.
func (l *Listener) monitor(s *session, stopCh <-chan struct{}) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	for {
		if err := l.probe(s); err != nil {
			l.dropSession(s, "peer closed", err)
			return
		}

		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}
	}
}

// probe returns nil while the peer is alive. An idle peer shows up as an
// expired read deadline; buffered or incoming data also counts as alive.
func (l *Listener) probe(s *session) error {
	if err := s.conn.SetReadDeadline(time.Now().Add(l.config.PeekTimeout)); err != nil {
		return err
	}

	_, err := s.peek.Peek(1)
	if err == nil || errors.Is(err, os.ErrDeadlineExceeded) {
		return nil
	}

	return err
}
