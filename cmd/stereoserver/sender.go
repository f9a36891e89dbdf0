package main

import (
	"errors"
	"time"

	"github.com/cyberinferno/stereolink/framing"
	"github.com/cyberinferno/stereolink/logger"
	"github.com/cyberinferno/stereolink/persist"
	"github.com/cyberinferno/stereolink/stereoserver"
)

// pairSender is the capture host's delivery policy: send to the connected
// client, and keep the pair on local disk when that is not possible.
type pairSender struct {
	listener *stereoserver.Listener
	fallback *persist.PairWriter
	log      logger.Logger
}

// deliver reports whether the pair reached the client. Pairs that did not
// are saved to the fallback directory; only a failed save is an error.
func (s *pairSender) deliver(left, right []byte) (bool, error) {
	err := s.listener.Send(left, right)
	if err == nil {
		s.log.Info("stereo pair sent", logger.Field{Key: "left_bytes", Value: len(left)}, logger.Field{Key: "right_bytes", Value: len(right)})
		return true, nil
	}

	var transportErr *stereoserver.TransportError
	switch {
	case errors.Is(err, stereoserver.ErrNotConnected):
		s.log.Info("no client connected, saving locally")
	case errors.As(err, &transportErr):
		s.log.Warn("failed to send stereo pair, saving locally", logger.Field{Key: "error", Value: err})
	default:
		return false, err
	}

	leftPath, rightPath, saveErr := s.fallback.Save(framing.Pair{Left: left, Right: right, ReceivedAt: time.Now()})
	if saveErr != nil {
		return false, saveErr
	}

	s.log.Info("stereo pair saved locally", logger.Field{Key: "left", Value: leftPath}, logger.Field{Key: "right", Value: rightPath})
	return false, nil
}
