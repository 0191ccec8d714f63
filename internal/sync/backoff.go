package sync

import "time"

const (
	backoffBase = 30 * time.Second
	backoffMax  = 15 * time.Minute
)

// computeBackoff returns the delay before the background loop may retry an
// entry, doubling per attempt and capped. The backoff only throttles the
// loop: a blocking SyncAll (registry close) always attempts everything,
// because the operator is standing there waiting for a definitive answer.
func computeBackoff(attempts int) time.Duration {
	d := backoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= backoffMax {
			return backoffMax
		}
	}
	return d
}
