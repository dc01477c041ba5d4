package incident

import "time"

// Backoff computes the delay schedule between remediation retries: the
// initial delay doubles on each retry and is capped at Max.
type Backoff struct {
	// Initial is the delay before the first retry.
	Initial time.Duration

	// Max caps the delay.
	Max time.Duration
}

// Delay returns the delay before the given retry, starting at 1.
func (b Backoff) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	delay := b.Initial
	for i := 1; i < retry; i++ {
		delay *= 2
		if delay >= b.Max {
			return b.Max
		}
	}
	if delay > b.Max {
		return b.Max
	}
	return delay
}
