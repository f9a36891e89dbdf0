package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSource_Capture(t *testing.T) {
	dir := t.TempDir()
	leftPath := filepath.Join(dir, "left.jpg")
	rightPath := filepath.Join(dir, "right.jpg")
	require.NoError(t, os.WriteFile(leftPath, []byte("L"), 0644))
	require.NoError(t, os.WriteFile(rightPath, []byte("R"), 0644))

	t.Run("reads both files", func(t *testing.T) {
		left, right, err := NewFileSource(leftPath, rightPath).Capture(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []byte("L"), left)
		assert.Equal(t, []byte("R"), right)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := NewFileSource(leftPath, filepath.Join(dir, "nope.jpg")).Capture(context.Background())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := NewFileSource(leftPath, rightPath).Capture(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSplitName(t *testing.T) {
	cases := []struct {
		name   string
		stem   string
		isLeft bool
		ok     bool
	}{
		{"shot1_left.jpg", "shot1", true, true},
		{"shot1_right.png", "shot1", false, true},
		{"a_b_left", "a_b", true, true},
		{"preview.jpg", "", false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stem, isLeft, ok := splitName(tc.name)
			assert.Equal(t, tc.stem, stem)
			assert.Equal(t, tc.isLeft, isLeft)
			assert.Equal(t, tc.ok, ok)
		})
	}
}

func TestDirWatcher(t *testing.T) {
	watchDir := t.TempDir()
	stageDir := t.TempDir()

	w, err := NewDirWatcher(watchDir, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Capture, 4)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, out) }()

	drop := func(name string, data []byte) {
		staged := filepath.Join(stageDir, name)
		require.NoError(t, os.WriteFile(staged, data, 0644))
		require.NoError(t, os.Rename(staged, filepath.Join(watchDir, name)))
	}

	drop("shot1_left.jpg", []byte("left"))
	drop("ignored.txt", []byte("x"))

	select {
	case c := <-out:
		t.Fatalf("pair emitted before right half: %+v", c.Stem)
	case <-time.After(100 * time.Millisecond):
	}

	drop("shot1_right.jpg", []byte("right"))

	select {
	case c := <-out:
		assert.Equal(t, "shot1", c.Stem)
		assert.Equal(t, []byte("left"), c.Left)
		assert.Equal(t, []byte("right"), c.Right)
	case <-time.After(2 * time.Second):
		t.Fatal("no pair emitted")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestNewDirWatcher_MissingDir(t *testing.T) {
	_, err := NewDirWatcher(filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)
}
