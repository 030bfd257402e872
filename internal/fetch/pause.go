package fetch

import (
	"context"
	"time"
)

// Pauser abstracts how the pipelines wait between successive requests.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// TimerPauser sleeps for the requested delay while honoring the context.
type TimerPauser struct{}

// Pause blocks until delay elapses or ctx is done.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
