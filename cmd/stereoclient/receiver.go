package main

import (
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"

	"github.com/cyberinferno/stereolink/framing"
	"github.com/cyberinferno/stereolink/logger"
	"github.com/cyberinferno/stereolink/pairstore"
)

// pairSource is the part of *stereoclient.Client the receive loop uses.
type pairSource interface {
	Connect() error
	Receive() (framing.Pair, error)
	Disconnect() error
}

// receiver keeps the client connected and publishes every pair it reads.
type receiver struct {
	client       pairSource
	publisher    *pairstore.Publisher
	log          logger.Logger
	reconnectMin time.Duration
	reconnectMax time.Duration
}

// run loops until ctx is done. Dial and receive failures are logged and
// followed by a reconnect after a jittered backoff.
func (r *receiver) run(ctx context.Context) error {
	b := &backoff.Backoff{Min: r.reconnectMin, Max: r.reconnectMax, Jitter: true}

	for {
		if err := r.client.Connect(); err != nil {
			if err := r.wait(ctx, b.Duration()); err != nil {
				return err
			}
			continue
		}

		if ctx.Err() != nil {
			_ = r.client.Disconnect()
			return ctx.Err()
		}

		b.Reset()
		err := r.receiveAll(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		r.log.Warn("stream interrupted, reconnecting", logger.Field{Key: "error", Value: err})
		if err := r.wait(ctx, b.Duration()); err != nil {
			return err
		}
	}
}

// receiveAll publishes pairs until the connection fails.
func (r *receiver) receiveAll(ctx context.Context) error {
	for {
		pair, err := r.client.Receive()
		if err != nil {
			return err
		}

		if r.publisher == nil {
			continue
		}

		key, err := r.publisher.Publish(ctx, pair)
		switch {
		case err == nil:
			r.log.Debug("stereo pair published", logger.Field{Key: "key", Value: key})
		case errors.Is(err, context.Canceled):
			return err
		default:
			r.log.Error("failed to publish stereo pair", logger.Field{Key: "error", Value: err})
		}
	}
}

func (r *receiver) wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
