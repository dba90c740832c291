package metrics

import "strconv"

// Counter is a monotonic unsigned value, grounded on
// packages/metrics/src/counter.rs's Counter(u64) contract.
type Counter uint64

// NewCounter wraps n as a Counter.
func NewCounter(n uint64) Counter { return Counter(n) }

// Value returns the counter's current value.
func (c Counter) Value() uint64 { return uint64(c) }

// Increment returns the counter advanced by n. Counters never decrease.
func (c Counter) Increment(n uint64) Counter { return c + Counter(n) }

// SetAbsolute returns a counter pinned to n, regardless of the prior value.
// Callers are responsible for never moving a counter backwards in a way
// that violates the monotonicity invariant of the metric it backs.
func (c Counter) SetAbsolute(n uint64) Counter { return Counter(n) }

// ToPrometheus renders the counter in Prometheus text exposition format:
// a plain base-10 integer.
func (c Counter) ToPrometheus() string {
	return strconv.FormatUint(uint64(c), 10)
}
