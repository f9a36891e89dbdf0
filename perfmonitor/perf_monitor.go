// Package perfmonitor measures how long an operation takes, for logging
// transfer durations.
package perfmonitor

import "time"

// PerformanceMonitor records a start and end time. It is not safe for
// concurrent use; give each measured operation its own monitor.
type PerformanceMonitor struct {
	startTime time.Time
	endTime   time.Time
}

// NewPerformanceMonitor returns a monitor with no measurement recorded.
func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{}
}

// Start records the start time, replacing any previous one.
func (p *PerformanceMonitor) Start() {
	p.startTime = time.Now()
}

// Stop records the end time. It does nothing if Start has not been called
// since the last Reset.
func (p *PerformanceMonitor) Stop() {
	if p.startTime.IsZero() {
		return
	}

	p.endTime = time.Now()
}

// Reset clears both recorded times.
func (p *PerformanceMonitor) Reset() {
	p.startTime = time.Time{}
	p.endTime = time.Time{}
}

// ElapsedMilliseconds returns the time between Start and Stop in
// milliseconds, or 0 if either has not been recorded.
//
// Returns:
//   - Elapsed milliseconds as a float64
func (p *PerformanceMonitor) ElapsedMilliseconds() float64 {
	if p.startTime.IsZero() || p.endTime.IsZero() {
		return 0
	}

	return float64(p.endTime.Sub(p.startTime)) / float64(time.Millisecond)
}
