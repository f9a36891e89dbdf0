// Package capture adapts image producers to the stereo listener. The camera
// hardware itself lives elsewhere; these sources read what it leaves on disk.
package capture

import (
	"context"
	"fmt"
	"os"
)

// Source produces one stereo pair per call.
type Source interface {
	// Capture returns the left and right image bytes.
	Capture(ctx context.Context) ([]byte, []byte, error)
}

// FileSource reads a fixed pair of files on every Capture, e.g. the images a
// camera tool overwrites on each shot.
type FileSource struct {
	LeftPath  string
	RightPath string
}

// NewFileSource returns a FileSource for the given paths.
func NewFileSource(leftPath, rightPath string) *FileSource {
	return &FileSource{LeftPath: leftPath, RightPath: rightPath}
}

// Capture reads both files.
//
// Parameters:
//   - ctx: Checked before reading
//
// Returns:
//   - The left and right file contents
//   - An error if the context is done or either file cannot be read
func (s *FileSource) Capture(ctx context.Context) ([]byte, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	left, err := os.ReadFile(s.LeftPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read left image: %w", err)
	}

	right, err := os.ReadFile(s.RightPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read right image: %w", err)
	}

	return left, right, nil
}
