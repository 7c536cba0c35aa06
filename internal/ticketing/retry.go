package ticketing

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// linearBackOff waits step * (ceiling - remaining) before each retry and
// stops once remaining reaches zero.
type linearBackOff struct {
	step      time.Duration
	ceiling   int
	initial   int
	remaining int
}

func newLinearBackOff(step time.Duration, ceiling, retries int) *linearBackOff {
	if retries < 0 {
		retries = 0
	}
	return &linearBackOff{step: step, ceiling: ceiling, initial: retries, remaining: retries}
}

func (b *linearBackOff) NextBackOff() time.Duration {
	if b.remaining <= 0 {
		return backoff.Stop
	}
	d := b.step * time.Duration(b.ceiling-b.remaining)
	b.remaining--
	return d
}

func (b *linearBackOff) Reset() {
	b.remaining = b.initial
}
