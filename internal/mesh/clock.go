package mesh

import "time"

// Clock abstracts the monotonic time source so the tick loop can be driven
// deterministically in tests. Liveness decisions always use this clock,
// never timestamps embedded in peer messages.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host clock. Go's time.Time carries a monotonic
// component, so elapsed-time comparisons are safe across wall clock steps.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
