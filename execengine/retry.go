package execengine

import "time"

// backoffDelay returns how long to wait before attempt k (1-based),
// matching the original implementation's retry_delay * 2^(k-2): the
// first retry (k=2) waits exactly retryDelayMs, the second (k=3) waits
// double that, and so on. There is no jitter and no maximum cap — this is
// a deliberate simplification the spec keeps over the teacher's
// webhook.RetryManager, which adds both (SPEC_FULL.md §4.7).
func backoffDelay(attempt int, retryDelayMs int64) time.Duration {
	if attempt <= 1 {
		return 0
	}
	shift := attempt - 2
	delay := retryDelayMs
	for i := 0; i < shift; i++ {
		delay *= 2
	}
	return time.Duration(delay) * time.Millisecond
}
