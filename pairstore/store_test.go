package pairstore

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/stereolink/framing"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		s := NewMemoryStore[string](cache.NoExpiration, time.Minute)

		require.NoError(t, s.Set(ctx, "k", "v", 0))
		v, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v", v)
	})

	t.Run("missing key", func(t *testing.T) {
		s := NewMemoryStore[string](cache.NoExpiration, time.Minute)

		v, ok, err := s.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("items expire", func(t *testing.T) {
		s := NewMemoryStore[int](cache.NoExpiration, time.Minute)

		require.NoError(t, s.Set(ctx, "k", 1, 20*time.Millisecond))
		time.Sleep(40 * time.Millisecond)

		_, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete, clear and count", func(t *testing.T) {
		s := NewMemoryStore[int](cache.NoExpiration, time.Minute)

		require.NoError(t, s.Set(ctx, "a", 1, 0))
		require.NoError(t, s.Set(ctx, "b", 2, 0))
		require.NoError(t, s.Set(ctx, "c", 3, 0))

		n, err := s.ItemCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		require.NoError(t, s.Delete(ctx, "a"))
		require.NoError(t, s.Delete(ctx, "a"))
		n, _ = s.ItemCount(ctx)
		assert.Equal(t, 2, n)

		require.NoError(t, s.Clear(ctx))
		n, _ = s.ItemCount(ctx)
		assert.Equal(t, 0, n)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := NewMemoryStore[int](cache.NoExpiration, time.Minute)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		assert.ErrorIs(t, s.Set(cctx, "k", 1, 0), context.Canceled)
		_, _, err := s.Get(cctx, "k")
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, s.Delete(cctx, "k"), context.Canceled)
		assert.ErrorIs(t, s.Clear(cctx), context.Canceled)
		_, err = s.ItemCount(cctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRedisStore_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	s := NewRedisStore[framing.Pair](client, "test:")
	ctx := context.Background()

	assert.Error(t, s.Set(ctx, "k", framing.Pair{Left: []byte("l")}, time.Minute))
	_, ok, err := s.Get(ctx, "k")
	assert.Error(t, err)
	assert.False(t, ok)
	_, err = s.ItemCount(ctx)
	assert.Error(t, err)
}

// silentServer accepts connections and never replies.
func silentServer(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}

			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
			go func() { _, _ = io.Copy(io.Discard, conn) }()
		}
	}()

	return ln.Addr().String()
}

func TestRedisStore_SharedGet(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        silentServer(t),
		DialTimeout: 100 * time.Millisecond,
		ReadTimeout: 300 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	s := NewRedisStore[framing.Pair](client, "test:")

	cctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, _, err := s.Get(cctx, "pair:latest")
		first <- err
	}()

	time.Sleep(20 * time.Millisecond)
	second := make(chan error, 1)
	go func() {
		_, _, err := s.Get(context.Background(), "pair:latest")
		second <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(150 * time.Millisecond):
		t.Fatal("cancelled Get did not return")
	}

	select {
	case err := <-second:
		require.Error(t, err)
		assert.NotErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("shared Get did not return")
	}
}

func TestPublisher(t *testing.T) {
	ctx := context.Background()

	t.Run("stores under timestamp and latest", func(t *testing.T) {
		store := NewMemoryStore[framing.Pair](cache.NoExpiration, time.Minute)
		p := NewPublisher(store, time.Minute)

		at := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
		key, err := p.Publish(ctx, framing.Pair{Left: []byte("l"), Right: []byte("r"), ReceivedAt: at})
		require.NoError(t, err)
		assert.Equal(t, "pair:20260102-030405.000000006", key)
		assert.Equal(t, key, KeyFor(at))

		stored, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("l"), stored.Left)

		latest, ok, err := p.Latest(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("r"), latest.Right)
	})

	t.Run("latest tracks the newest pair", func(t *testing.T) {
		p := NewPublisher(NewMemoryStore[framing.Pair](cache.NoExpiration, time.Minute), 0)

		_, err := p.Publish(ctx, framing.Pair{Left: []byte("first")})
		require.NoError(t, err)
		_, err = p.Publish(ctx, framing.Pair{Left: []byte("second")})
		require.NoError(t, err)

		latest, ok, err := p.Latest(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("second"), latest.Left)
	})

	t.Run("empty store has no latest", func(t *testing.T) {
		p := NewPublisher(NewMemoryStore[framing.Pair](cache.NoExpiration, time.Minute), 0)

		_, ok, err := p.Latest(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("store errors are wrapped", func(t *testing.T) {
		p := NewPublisher(NewMemoryStore[framing.Pair](cache.NoExpiration, time.Minute), 0)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := p.Publish(cctx, framing.Pair{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
