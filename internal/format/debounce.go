package format

import (
	"sync"
	"time"
)

// Timer is a pending scheduled call.
type Timer interface {
	// Stop prevents the call from running. It reports whether the call was
	// stopped before it ran.
	Stop() bool
}

// Scheduler runs f once after d has elapsed.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler schedules on the wall clock via time.AfterFunc.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debounce returns a function that delays calling fn until wait has passed
// without another call. Each call cancels the pending one and reschedules
// with its own argument, so a burst of calls closer together than wait runs
// fn once, with the last argument, wait after the last call.
func Debounce[T any](s Scheduler, wait time.Duration, fn func(T)) func(T) {
	var (
		mu      sync.Mutex
		pending Timer
		gen     uint64
	)
	return func(arg T) {
		mu.Lock()
		defer mu.Unlock()

		if pending != nil {
			pending.Stop()
		}
		gen++
		mine := gen
		pending = s.AfterFunc(wait, func() {
			mu.Lock()
			// A timer that already fired cannot be stopped; drop it if a
			// newer call has superseded it in the meantime.
			if mine != gen {
				mu.Unlock()
				return
			}
			pending = nil
			mu.Unlock()
			fn(arg)
		})
	}
}
