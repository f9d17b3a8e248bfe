package simulation

import (
	"context"
	"time"
)

// maxCatchUpSteps bounds how many fixed steps run after a scheduler stall so a
// long pause cannot trigger an unbounded burst of frames.
const maxCatchUpSteps = 5

// StepFunc advances the simulation by one fixed frame step.
type StepFunc func(step time.Duration)

// Loop drives a fixed timestep simulation at the configured frame rate. All
// steps run on a single goroutine, which is what gives the frame pipeline its
// strict sequential ordering.
type Loop struct {
	step     time.Duration
	stepFunc StepFunc
	ticker   *time.Ticker
	done     chan struct{}
}

// NewLoop configures a loop targeting the provided frames per second.
func NewLoop(targetHz float64, step StepFunc) *Loop {
	if targetHz <= 0 {
		targetHz = 60
	}
	if step == nil {
		step = func(time.Duration) {}
	}
	interval := time.Duration(float64(time.Second) / targetHz)
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &Loop{step: interval, stepFunc: step}
}

// Start begins ticking until the context is cancelled or Stop is invoked.
func (l *Loop) Start(ctx context.Context) {
	if l == nil || l.stepFunc == nil {
		return
	}

	l.ticker = time.NewTicker(l.step)
	l.done = make(chan struct{})
	go func() {
		defer close(l.done)
		defer l.ticker.Stop()
		last := time.Now()
		accumulator := time.Duration(0)
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-l.ticker.C:
				//1.- Accumulate elapsed wall time and run fixed steps to catch up.
				accumulator += now.Sub(last)
				last = now
				ran := 0
				for accumulator >= l.step && ran < maxCatchUpSteps {
					l.stepFunc(l.step)
					accumulator -= l.step
					ran++
				}
				//2.- Discard any remaining debt past the burst cap; the frame
				// step's own delta clamp covers the lost simulated time.
				if ran == maxCatchUpSteps {
					accumulator = 0
				}
			}
		}
	}()
}

// Stop cancels the loop and waits for the goroutine to exit.
func (l *Loop) Stop() {
	if l == nil {
		return
	}
	if l.ticker != nil {
		l.ticker.Stop()
	}
	if l.done != nil {
		<-l.done
		l.done = nil
	}
}

// StepDuration exposes the configured timestep.
func (l *Loop) StepDuration() time.Duration {
	if l == nil {
		return 0
	}
	return l.step
}
