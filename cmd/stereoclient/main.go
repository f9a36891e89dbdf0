// Command stereoclient runs on the processing host. It connects to the
// capture host, receives stereo pairs and publishes each one to the
// configured pair store, reconnecting whenever the link drops.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/stereolink/config"
	"github.com/cyberinferno/stereolink/framing"
	"github.com/cyberinferno/stereolink/logger"
	"github.com/cyberinferno/stereolink/pairstore"
	"github.com/cyberinferno/stereolink/stereoclient"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "stereoclient:", err)
		os.Exit(1)
	}
}

func run() error {
	flags := config.NewFlagSet("stereoclient")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(config.ConfigPath(flags), flags)
	if err != nil {
		return err
	}

	log, err := cfg.Log.NewLogger("stereoclient")
	if err != nil {
		return err
	}
	defer log.Close()

	publisher, closeStore, err := newPublisher(cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	client, err := stereoclient.New(stereoclient.Config{
		Address:           cfg.Client.Addr,
		ConnectionTimeout: cfg.Client.ConnectTimeout,
		StrictChannelTags: cfg.Client.StrictChannelTags,
		MaxFrameLength:    cfg.Client.MaxFrameLength,
		Persist:           cfg.Client.Persist,
		PersistDir:        cfg.Client.PersistDir,
		PersistExt:        cfg.Client.PersistExt,
	}, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := &receiver{
		client:       client,
		publisher:    publisher,
		log:          log,
		reconnectMin: cfg.Client.ReconnectMin,
		reconnectMax: cfg.Client.ReconnectMax,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		if err := client.Disconnect(); err != nil {
			log.Warn("disconnect failed", logger.Field{Key: "error", Value: err})
		}
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// newPublisher builds the pair store named by cfg.Backend. A nil Publisher
// means received pairs are not published.
func newPublisher(cfg config.StoreConfig) (*pairstore.Publisher, func(), error) {
	switch cfg.Backend {
	case "none":
		return nil, func() {}, nil
	case "memory":
		store := pairstore.NewMemoryStore[framing.Pair](cfg.TTL, 2*cfg.TTL)
		return pairstore.NewPublisher(store, cfg.TTL), func() {}, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		store := pairstore.NewRedisStore[framing.Pair](rdb, cfg.KeyPrefix)
		return pairstore.NewPublisher(store, cfg.TTL), func() { _ = rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
