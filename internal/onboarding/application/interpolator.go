package application

import (
	"sync"
	"time"

	onboarding "iot-console/internal/onboarding/domain"
)

// interpolator emits synthesized progress inside the active stage's band
// while its remote call is outstanding, so the indicator never freezes. It
// advances one percent per tick, stays strictly below the stage ceiling, and
// stops the instant the stage resolves.
type interpolator struct {
	once sync.Once
	stop chan struct{}
	done chan struct{}
}

// startInterpolation begins ticking for the stage. emit is the run's
// monotonic emitter. Returns a handle whose Stop must be called on every
// exit path of the stage.
func startInterpolation(stage onboarding.Stage, from int, interval time.Duration, emit func(stage onboarding.Stage, percent int, message, subMessage string), message string) *interpolator {
	in := &interpolator{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	_, ceiling := stage.Band()
	if interval <= 0 || emit == nil || from >= ceiling-1 {
		close(in.done)
		return in
	}
	go func() {
		defer close(in.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		percent := from
		for {
			select {
			case <-in.stop:
				return
			case <-ticker.C:
				if percent >= ceiling-1 {
					return
				}
				percent++
				emit(stage, percent, message, "")
			}
		}
	}()
	return in
}

// Stop halts interpolation and waits until no further snapshot will be
// emitted. Safe to call more than once.
func (in *interpolator) Stop() {
	if in == nil {
		return
	}
	in.once.Do(func() { close(in.stop) })
	<-in.done
}
