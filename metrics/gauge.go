package metrics

import (
	"math"
	"strconv"
)

// Gauge is a signed floating-point value that can move in either direction,
// grounded on packages/metrics/src/gauge.rs's Gauge(f64) contract.
type Gauge float64

// NewGauge wraps f as a Gauge.
func NewGauge(f float64) Gauge { return Gauge(f) }

// Value returns the gauge's current value.
func (g Gauge) Value() float64 { return float64(g) }

// Set returns a gauge pinned to f.
func (g Gauge) Set(f float64) Gauge { return Gauge(f) }

// Increment returns the gauge advanced by f.
func (g Gauge) Increment(f float64) Gauge { return g + Gauge(f) }

// Decrement returns the gauge reduced by f.
func (g Gauge) Decrement(f float64) Gauge { return g - Gauge(f) }

// ToPrometheus renders the gauge in Prometheus text exposition format,
// using the special tokens "inf"/"-inf"/"NaN" where applicable.
func (g Gauge) ToPrometheus() string {
	f := float64(g)
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "NaN"
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}
