// Package persist writes stereo pairs to disk as two files named by capture time.
package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cyberinferno/stereolink/framing"
)

// TimestampLayout formats the capture time in persisted file names.
const TimestampLayout = "20060102-150405.000000000"

// DefaultExt is used when PairWriter.Ext is empty.
const DefaultExt = ".jpg"

// PairWriter saves pairs as <timestamp>_left<ext> and <timestamp>_right<ext>
// under Dir. The zero value writes to the working directory.
type PairWriter struct {
	Dir string
	Ext string
}

// NewPairWriter returns a PairWriter for dir, creating the directory if needed.
//
// Parameters:
//   - dir: Destination directory
//   - ext: File extension including the dot; empty means DefaultExt
//
// Returns:
//   - The writer, or an error if dir cannot be created
func NewPairWriter(dir, ext string) (*PairWriter, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create persist directory: %w", err)
		}
	}

	return &PairWriter{Dir: dir, Ext: ext}, nil
}

// Paths returns the file paths a pair captured at t is written to.
func (w *PairWriter) Paths(t time.Time) (string, string) {
	ext := w.Ext
	if ext == "" {
		ext = DefaultExt
	}

	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	stamp := t.Format(TimestampLayout)
	return filepath.Join(w.Dir, stamp+"_left"+ext), filepath.Join(w.Dir, stamp+"_right"+ext)
}

// Save writes both halves of pair. A zero ReceivedAt is replaced by the
// current time. If the right file cannot be written the left one is removed,
// so a pair is either fully on disk or not at all.
//
// Parameters:
//   - pair: The pair to save
//
// Returns:
//   - The left and right file paths
//   - An error if either write fails
func (w *PairWriter) Save(pair framing.Pair) (string, string, error) {
	at := pair.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}

	leftPath, rightPath := w.Paths(at)

	if err := os.WriteFile(leftPath, pair.Left, 0644); err != nil {
		return "", "", fmt.Errorf("save left image: %w", err)
	}

	if err := os.WriteFile(rightPath, pair.Right, 0644); err != nil {
		return "", "", errors.Join(fmt.Errorf("save right image: %w", err), removeIfExists(leftPath))
	}

	return leftPath, rightPath, nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}
