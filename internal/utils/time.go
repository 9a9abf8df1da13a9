package utils

import "time"

// TimelockRemaining returns how long a transaction queued at queuedAt (unix
// seconds) still has to wait before the delay has elapsed. Zero once elapsed.
func TimelockRemaining(queuedAt, minDelay uint64, now time.Time) time.Duration {
	if queuedAt == 0 {
		return 0
	}

	readyAt := time.Unix(int64(queuedAt+minDelay), 0)
	if !now.Before(readyAt) {
		return 0
	}
	return readyAt.Sub(now).Truncate(time.Second)
}

// TimelockProgress is the elapsed fraction of the delay, clamped to [0, 1].
func TimelockProgress(queuedAt, minDelay uint64, now time.Time) float64 {
	if queuedAt == 0 {
		return 0
	}
	if minDelay == 0 {
		return 1
	}

	elapsed := now.Unix() - int64(queuedAt)
	switch {
	case elapsed <= 0:
		return 0
	case uint64(elapsed) >= minDelay:
		return 1
	default:
		return float64(elapsed) / float64(minDelay)
	}
}
