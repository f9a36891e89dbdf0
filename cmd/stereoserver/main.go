// Command stereoserver runs on the capture host. It listens for the
// processing client and sends it each captured stereo pair, either on an
// operator "capture" command or whenever a pair lands in a watch directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/stereolink/capture"
	"github.com/cyberinferno/stereolink/config"
	"github.com/cyberinferno/stereolink/logger"
	"github.com/cyberinferno/stereolink/persist"
	"github.com/cyberinferno/stereolink/stereoserver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "stereoserver:", err)
		os.Exit(1)
	}
}

func run() error {
	flags := config.NewFlagSet("stereoserver")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(config.ConfigPath(flags), flags)
	if err != nil {
		return err
	}

	log, err := cfg.Log.NewLogger("stereoserver")
	if err != nil {
		return err
	}
	defer log.Close()

	fallback, err := persist.NewPairWriter(cfg.Server.FallbackDir, "")
	if err != nil {
		return err
	}

	listener := stereoserver.NewListener(stereoserver.Config{
		Name:         "capture",
		Addr:         cfg.Server.Addr,
		PollInterval: cfg.Server.PollInterval,
		PeekTimeout:  cfg.Server.PeekTimeout,
		StopTimeout:  cfg.Server.StopTimeout,
		Logger:       log,
	})
	if err := listener.Start(); err != nil {
		return err
	}
	defer func() {
		if err := listener.Stop(); err != nil {
			log.Error("listener stop failed", logger.Field{Key: "error", Value: err})
		}
	}()

	sender := &pairSender{listener: listener, fallback: fallback, log: log}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Capture.WatchDir != "" {
		watcher, err := capture.NewDirWatcher(cfg.Capture.WatchDir, log)
		if err != nil {
			return err
		}
		defer watcher.Close()

		captures := make(chan capture.Capture)
		g.Go(func() error {
			return watcher.Run(gctx, captures)
		})
		g.Go(func() error {
			return sendDropped(gctx, sender, captures, log)
		})
	} else {
		source := capture.NewFileSource(cfg.Capture.LeftPath, cfg.Capture.RightPath)
		g.Go(func() error {
			return prompt(gctx, sender, source, listener)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func sendDropped(ctx context.Context, sender *pairSender, captures <-chan capture.Capture, log logger.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-captures:
			if _, err := sender.deliver(c.Left, c.Right); err != nil {
				log.Error("failed to deliver stereo pair", logger.Field{Key: "stem", Value: c.Stem}, logger.Field{Key: "error", Value: err})
			}
		}
	}
}

// prompt runs the operator shell until "quit", EOF or ctx is done.
func prompt(ctx context.Context, sender *pairSender, source capture.Source, listener *stereoserver.Listener) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "stereo> ",
		AutoComplete:    readline.NewPrefixCompleter(readline.PcItem("capture"), readline.PcItem("status"), readline.PcItem("help"), readline.PcItem("quit")),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	go func() {
		<-ctx.Done()
		_ = rl.Close()
	}()

	out := rl.Stdout()
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return context.Canceled
			}

			if ctx.Err() != nil {
				return ctx.Err()
			}

			return err
		}

		switch strings.TrimSpace(line) {
		case "":
		case "capture":
			left, right, err := source.Capture(ctx)
			if err != nil {
				fmt.Fprintln(out, "capture failed:", err)
				continue
			}

			sent, err := sender.deliver(left, right)
			switch {
			case err != nil:
				fmt.Fprintln(out, "pair lost:", err)
			case sent:
				fmt.Fprintln(out, "sent")
			default:
				fmt.Fprintln(out, "saved locally")
			}
		case "status":
			if info, ok := listener.CurrentSession(); ok {
				fmt.Fprintf(out, "client %s connected since %s\n", info.RemoteAddr, info.ConnectedAt.Format("15:04:05"))
			} else {
				fmt.Fprintf(out, "listening on %s, no client\n", listener.Addr())
			}
		case "help":
			fmt.Fprintln(out, "commands: capture, status, quit")
		case "quit", "exit":
			return context.Canceled
		default:
			fmt.Fprintf(out, "unknown command %q\n", line)
		}
	}
}
