package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}

		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		entries = append(entries, m)
	}

	return entries
}

func TestZerologLogger(t *testing.T) {
	t.Run("writes service, level and fields", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewZerologLogger(&buf, "stereo", zerolog.DebugLevel)

		l.Info("hello", Field{Key: "bytes", Value: 5})

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "stereo", entries[0]["service"])
		assert.Equal(t, "info", entries[0]["level"])
		assert.Equal(t, "hello", entries[0]["message"])
		assert.Equal(t, float64(5), entries[0]["bytes"])
	})

	t.Run("drops entries below level", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewZerologLogger(&buf, "stereo", zerolog.WarnLevel)

		l.Debug("d")
		l.Info("i")
		l.Warn("w")
		l.Error("e")

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 2)
		assert.Equal(t, "w", entries[0]["message"])
		assert.Equal(t, "e", entries[1]["message"])
	})

	t.Run("errors are rendered as strings", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewZerologLogger(&buf, "stereo", zerolog.InfoLevel)

		l.Error("failed", Field{Key: "error", Value: errors.New("broken pipe")})

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "broken pipe", entries[0]["error"])
	})

	t.Run("with attaches fields without changing parent", func(t *testing.T) {
		var buf bytes.Buffer
		parent := NewZerologLogger(&buf, "stereo", zerolog.InfoLevel)
		child := parent.With(Field{Key: "session", Value: "abc"})

		child.Info("child")
		parent.Info("parent")

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 2)
		assert.Equal(t, "abc", entries[0]["session"])
		_, ok := entries[1]["session"]
		assert.False(t, ok)
		assert.NoError(t, child.Close())
	})
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Info("ignored")
	assert.NoError(t, l.Close())
	assert.NotNil(t, OrNop(nil))
	assert.Same(t, l, OrNop(l))
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		"INFO":     zerolog.InfoLevel,
		"":         zerolog.InfoLevel,
		"warn":     zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
	}

	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			got, err := ParseLevel(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	t.Run("unknown level", func(t *testing.T) {
		_, err := ParseLevel("loud")
		assert.Error(t, err)
	})
}

func TestDailyFileWriter(t *testing.T) {
	t.Run("writes to dated file", func(t *testing.T) {
		dir := t.TempDir()
		w, err := NewDailyFileWriter("svc", dir)
		require.NoError(t, err)

		_, err = w.Write([]byte("line\n"))
		require.NoError(t, err)

		path := w.CurrentLogFile()
		assert.Equal(t, filepath.Join(dir, "svc_"+time.Now().Format(dateLayout)+".log"), path)
		require.NoError(t, w.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "line\n", string(data))
	})

	t.Run("rotates when the date changes", func(t *testing.T) {
		dir := t.TempDir()
		w, err := NewDailyFileWriter("svc", dir)
		require.NoError(t, err)
		defer w.Close()

		day := time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC)
		w.now = func() time.Time { return day }

		_, err = w.Write([]byte("next day\n"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "svc_2030-01-02.log"), w.CurrentLogFile())
	})

	t.Run("write after close fails", func(t *testing.T) {
		w, err := NewDailyFileWriter("svc", t.TempDir())
		require.NoError(t, err)
		require.NoError(t, w.Close())
		require.NoError(t, w.Close())

		_, err = w.Write([]byte("x"))
		assert.Error(t, err)
		assert.Equal(t, "", w.CurrentLogFile())
	})

	t.Run("file logger creates directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "logs")
		l, err := NewZerologFileLogger("svc", dir, zerolog.InfoLevel)
		require.NoError(t, err)
		l.Info("to file")
		require.NoError(t, l.Close())

		matches, err := filepath.Glob(filepath.Join(dir, "svc_*.log"))
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})
}
