package progress

import (
	"math"
	"sync/atomic"
)

// Tracker counts acknowledged units (chunks) against a known total.
type Tracker struct {
	total   int64
	current atomic.Int64
}

func NewTracker(total int64) *Tracker {
	return &Tracker{total: total}
}

// Add records n more acknowledged units and returns the new percentage.
func (t *Tracker) Add(n int64) int {
	t.current.Add(n)
	return t.Percent()
}

// Percent is round(current/total*100). An empty total counts as complete.
func (t *Tracker) Percent() int {
	if t.total <= 0 {
		return 100
	}
	return int(math.Round(float64(t.current.Load()) / float64(t.total) * 100))
}
