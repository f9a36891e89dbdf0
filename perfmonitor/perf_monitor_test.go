package perfmonitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPerformanceMonitor(t *testing.T) {
	pm := NewPerformanceMonitor()

	assert.NotNil(t, pm)
	assert.True(t, pm.startTime.IsZero())
	assert.True(t, pm.endTime.IsZero())
	assert.Equal(t, 0.0, pm.ElapsedMilliseconds())
}

func TestStartStop(t *testing.T) {
	t.Run("stop without start records nothing", func(t *testing.T) {
		pm := NewPerformanceMonitor()

		pm.Stop()

		assert.True(t, pm.endTime.IsZero())
		assert.Equal(t, 0.0, pm.ElapsedMilliseconds())
	})

	t.Run("start without stop reports zero", func(t *testing.T) {
		pm := NewPerformanceMonitor()

		pm.Start()

		assert.False(t, pm.startTime.IsZero())
		assert.Equal(t, 0.0, pm.ElapsedMilliseconds())
	})

	t.Run("measures elapsed time", func(t *testing.T) {
		pm := NewPerformanceMonitor()

		pm.Start()
		time.Sleep(20 * time.Millisecond)
		pm.Stop()

		assert.GreaterOrEqual(t, pm.ElapsedMilliseconds(), 20.0)
	})

	t.Run("later stop extends measurement", func(t *testing.T) {
		pm := NewPerformanceMonitor()

		pm.Start()
		pm.Stop()
		first := pm.ElapsedMilliseconds()
		time.Sleep(10 * time.Millisecond)
		pm.Stop()

		assert.Greater(t, pm.ElapsedMilliseconds(), first)
	})
}

func TestReset(t *testing.T) {
	t.Run("clears both times", func(t *testing.T) {
		pm := NewPerformanceMonitor()

		pm.Start()
		pm.Stop()
		pm.Reset()

		assert.True(t, pm.startTime.IsZero())
		assert.True(t, pm.endTime.IsZero())
		assert.Equal(t, 0.0, pm.ElapsedMilliseconds())
	})

	t.Run("stop after reset records nothing", func(t *testing.T) {
		pm := NewPerformanceMonitor()

		pm.Start()
		pm.Reset()
		pm.Stop()

		assert.True(t, pm.endTime.IsZero())
	})

	t.Run("allows reuse", func(t *testing.T) {
		pm := NewPerformanceMonitor()

		pm.Start()
		time.Sleep(5 * time.Millisecond)
		pm.Stop()
		pm.Reset()

		pm.Start()
		time.Sleep(5 * time.Millisecond)
		pm.Stop()

		assert.GreaterOrEqual(t, pm.ElapsedMilliseconds(), 5.0)
	})
}
