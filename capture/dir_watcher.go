package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/cyberinferno/stereolink/logger"
)

const (
	leftSuffix  = "_left"
	rightSuffix = "_right"
)

// Capture is a pair found by DirWatcher.
type Capture struct {
	Stem      string
	LeftPath  string
	RightPath string
	Left      []byte
	Right     []byte
}

// DirWatcher watches a drop directory and emits a Capture once both
// <stem>_left.<ext> and <stem>_right.<ext> exist. Each stem is emitted once,
// so producers should write each file elsewhere and rename it into dir.
type DirWatcher struct {
	dir     string
	log     logger.Logger
	watcher *fsnotify.Watcher
	pending map[string]Capture
	seen    map[string]bool
}

// NewDirWatcher starts watching dir.
//
// Parameters:
//   - dir: The directory the capture tool writes into; must exist
//   - log: Logger for watch errors; nil discards them
//
// Returns:
//   - The watcher; call Run to receive pairs and Close when done
//   - An error if the watch cannot be set up
func NewDirWatcher(dir string, log logger.Logger) (*DirWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &DirWatcher{
		dir:     dir,
		log:     logger.OrNop(log).With(logger.Field{Key: "watch_dir", Value: dir}),
		watcher: watcher,
		pending: make(map[string]Capture),
		seen:    make(map[string]bool),
	}, nil
}

// Run delivers completed pairs on out until ctx is done or the watcher is
// closed. It does not close out.
//
// Parameters:
//   - ctx: Stops the loop when done
//   - out: Receives each completed pair
//
// Returns:
//   - ctx.Err() when cancelled, or nil when the watcher was closed
func (w *DirWatcher) Run(ctx context.Context, out chan<- Capture) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}

			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			c, ready := w.observe(event.Name)
			if !ready {
				continue
			}

			select {
			case out <- c:
			case <-ctx.Done():
				return ctx.Err()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}

			w.log.Warn("watch error", logger.Field{Key: "error", Value: err})
		}
	}
}

// Close stops watching.
func (w *DirWatcher) Close() error {
	return w.watcher.Close()
}

// observe records path and reports a pair when both halves can be read.
// A half that cannot be read yet (still being written) is retried on the
// next event for that file.
func (w *DirWatcher) observe(path string) (Capture, bool) {
	stem, isLeft, ok := splitName(filepath.Base(path))
	if !ok || w.seen[stem] {
		return Capture{}, false
	}

	c := w.pending[stem]
	c.Stem = stem
	if isLeft {
		c.LeftPath = path
	} else {
		c.RightPath = path
	}
	w.pending[stem] = c

	if c.LeftPath == "" || c.RightPath == "" {
		return Capture{}, false
	}

	left, err := os.ReadFile(c.LeftPath)
	if err != nil {
		return Capture{}, false
	}

	right, err := os.ReadFile(c.RightPath)
	if err != nil {
		return Capture{}, false
	}

	c.Left, c.Right = left, right
	delete(w.pending, stem)
	w.seen[stem] = true
	return c, true
}

// splitName parses "<stem>_left.<ext>" or "<stem>_right.<ext>".
func splitName(name string) (stem string, isLeft bool, ok bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))

	switch {
	case strings.HasSuffix(base, leftSuffix):
		return strings.TrimSuffix(base, leftSuffix), true, true
	case strings.HasSuffix(base, rightSuffix):
		return strings.TrimSuffix(base, rightSuffix), false, true
	default:
		return "", false, false
	}
}
