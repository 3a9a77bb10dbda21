package alazar

import (
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ThrottleProgress wraps a progress callback so it is called at most once
// per interval.  The final report of 1 is always delivered.
func ThrottleProgress(interval time.Duration, f func(float64)) func(float64) {
	if f == nil {
		return nil
	}
	lim := rate.NewLimiter(rate.Every(interval), 1)
	return func(frac float64) {
		if frac >= 1 || lim.Allow() {
			f(frac)
		}
	}
}

// Progress is a progress callback that stores the last fraction reported,
// for readers on other goroutines
type Progress struct {
	bits atomic.Uint64
}

// Report stores frac
func (p *Progress) Report(frac float64) {
	p.bits.Store(math.Float64bits(frac))
}

// Fraction returns the last fraction reported
func (p *Progress) Fraction() float64 {
	return math.Float64frombits(p.bits.Load())
}
