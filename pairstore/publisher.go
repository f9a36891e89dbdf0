package pairstore

import (
	"context"
	"fmt"
	"time"

	"github.com/cyberinferno/stereolink/framing"
	"github.com/cyberinferno/stereolink/persist"
)

// LatestKey is the key that always holds the most recently published pair.
const LatestKey = "pair:latest"

// Publisher stores received pairs where the vision pipeline can read them:
// each pair under "pair:<timestamp>" and again under LatestKey.
type Publisher struct {
	store Store[framing.Pair]
	ttl   time.Duration
}

// NewPublisher returns a Publisher writing to store with the given TTL.
func NewPublisher(store Store[framing.Pair], ttl time.Duration) *Publisher {
	return &Publisher{store: store, ttl: ttl}
}

// KeyFor returns the key a pair received at t is stored under.
func KeyFor(t time.Time) string {
	return "pair:" + t.Format(persist.TimestampLayout)
}

// Publish stores pair under its timestamp key and LatestKey.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - pair: The pair to publish; a zero ReceivedAt is set to now
//
// Returns:
//   - The timestamp key the pair was stored under
//   - An error if either write failed
func (p *Publisher) Publish(ctx context.Context, pair framing.Pair) (string, error) {
	if pair.ReceivedAt.IsZero() {
		pair.ReceivedAt = time.Now()
	}

	key := KeyFor(pair.ReceivedAt)
	if err := p.store.Set(ctx, key, pair, p.ttl); err != nil {
		return "", fmt.Errorf("publish %s: %w", key, err)
	}

	if err := p.store.Set(ctx, LatestKey, pair, p.ttl); err != nil {
		return "", fmt.Errorf("publish %s: %w", LatestKey, err)
	}

	return key, nil
}

// Latest returns the most recently published pair.
//
// Returns:
//   - The pair and true, or false if nothing is stored or it expired
//   - An error if the lookup failed
func (p *Publisher) Latest(ctx context.Context) (framing.Pair, bool, error) {
	return p.store.Get(ctx, LatestKey)
}
