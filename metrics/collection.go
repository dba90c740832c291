package metrics

import (
	"errors"
	"sync"
	"time"
)

// ErrUnknownMetric is returned when an operation addresses a metric name
// already registered under the opposite kind (counter vs gauge).
var ErrUnknownMetric = errors.New("metrics: name already registered as a different metric kind")

// LabelSet is an ordered multimap from label name to label value. Order is
// insertion order, so two LabelSets built from the same sequence of Set
// calls compare equal under reflect.DeepEqual.
type LabelSet struct {
	names  []LabelName
	values map[LabelName]string
}

// NewLabelSet returns an empty LabelSet.
func NewLabelSet() *LabelSet {
	return &LabelSet{values: make(map[LabelName]string)}
}

// With returns a LabelSet with name=value added, sanitizing name. It is not
// safe to share a *LabelSet across goroutines while calling With.
func (l *LabelSet) With(name, value string) *LabelSet {
	ln, err := NewLabelName(name)
	if err != nil {
		return l
	}
	if _, exists := l.values[ln]; !exists {
		l.names = append(l.names, ln)
	}
	l.values[ln] = value
	return l
}

// Matches reports whether every pair in criteria appears in l.
func (l *LabelSet) Matches(criteria map[string]string) bool {
	for k, v := range criteria {
		ln, err := NewLabelName(k)
		if err != nil {
			return false
		}
		if got, ok := l.values[ln]; !ok || got != v {
			return false
		}
	}
	return true
}

// Pairs returns the label set as ordered (name, value) pairs.
func (l *LabelSet) Pairs() [][2]string {
	pairs := make([][2]string, 0, len(l.names))
	for _, n := range l.names {
		pairs = append(pairs, [2]string{n.String(), l.values[n]})
	}
	return pairs
}

type counterSample struct {
	labels     *LabelSet
	value      Counter
	lastUpdate time.Time
}

type gaugeSample struct {
	labels     *LabelSet
	value      Gauge
	lastUpdate time.Time
}

type counterMetric struct {
	unit        string
	description string
	samples     []*counterSample
}

type gaugeMetric struct {
	unit        string
	description string
	samples     []*gaugeSample
}

// MetricCollection holds all counters and gauges known to one process,
// behind a single writer lock, per SPEC_FULL.md §3's "shared mutable state
// behind a single-writer lock" ownership rule.
type MetricCollection struct {
	mu       sync.Mutex
	counters map[MetricName]*counterMetric
	gauges   map[MetricName]*gaugeMetric
}

// New returns an empty MetricCollection.
func New() *MetricCollection {
	return &MetricCollection{
		counters: make(map[MetricName]*counterMetric),
		gauges:   make(map[MetricName]*gaugeMetric),
	}
}

// DescribeCounter registers metadata for name, creating it if absent.
// Idempotent: re-describing an existing counter is a no-op beyond updating
// unit/description.
func (m *MetricCollection) DescribeCounter(name MetricName, unit, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, isGauge := m.gauges[name]; isGauge {
		return ErrUnknownMetric
	}
	c, ok := m.counters[name]
	if !ok {
		c = &counterMetric{}
		m.counters[name] = c
	}
	c.unit, c.description = unit, description
	return nil
}

// DescribeGauge registers metadata for name, creating it if absent.
func (m *MetricCollection) DescribeGauge(name MetricName, unit, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, isCounter := m.counters[name]; isCounter {
		return ErrUnknownMetric
	}
	g, ok := m.gauges[name]
	if !ok {
		g = &gaugeMetric{}
		m.gauges[name] = g
	}
	g.unit, g.description = unit, description
	return nil
}

func (m *MetricCollection) findCounterSample(c *counterMetric, labels *LabelSet) *counterSample {
	for _, s := range c.samples {
		if sameLabels(s.labels, labels) {
			return s
		}
	}
	return nil
}

func (m *MetricCollection) findGaugeSample(g *gaugeMetric, labels *LabelSet) *gaugeSample {
	for _, s := range g.samples {
		if sameLabels(s.labels, labels) {
			return s
		}
	}
	return nil
}

func sameLabels(a, b *LabelSet) bool {
	if len(a.names) != len(b.names) {
		return false
	}
	for _, n := range a.names {
		if a.values[n] != b.values[n] {
			return false
		}
	}
	return true
}

// IncrementCounter increments the sample for labels by 1, creating the
// metric and sample on first use.
func (m *MetricCollection) IncrementCounter(name MetricName, labels *LabelSet, now time.Time) error {
	return m.addToCounter(name, labels, 1, now)
}

// AddCounter increments the sample for labels by n.
func (m *MetricCollection) AddCounter(name MetricName, labels *LabelSet, n uint64, now time.Time) error {
	return m.addToCounter(name, labels, n, now)
}

func (m *MetricCollection) addToCounter(name MetricName, labels *LabelSet, n uint64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, isGauge := m.gauges[name]; isGauge {
		return ErrUnknownMetric
	}
	c, ok := m.counters[name]
	if !ok {
		c = &counterMetric{}
		m.counters[name] = c
	}
	s := m.findCounterSample(c, labels)
	if s == nil {
		s = &counterSample{labels: labels}
		c.samples = append(c.samples, s)
	}
	s.value = s.value.Increment(n)
	s.lastUpdate = now
	return nil
}

// SetCounter pins the sample for labels to value.
func (m *MetricCollection) SetCounter(name MetricName, labels *LabelSet, value uint64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, isGauge := m.gauges[name]; isGauge {
		return ErrUnknownMetric
	}
	c, ok := m.counters[name]
	if !ok {
		c = &counterMetric{}
		m.counters[name] = c
	}
	s := m.findCounterSample(c, labels)
	if s == nil {
		s = &counterSample{labels: labels}
		c.samples = append(c.samples, s)
	}
	s.value = s.value.SetAbsolute(value)
	s.lastUpdate = now
	return nil
}

// SetGauge pins the sample for labels to value.
func (m *MetricCollection) SetGauge(name MetricName, labels *LabelSet, value float64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, isCounter := m.counters[name]; isCounter {
		return ErrUnknownMetric
	}
	g, ok := m.gauges[name]
	if !ok {
		g = &gaugeMetric{}
		m.gauges[name] = g
	}
	s := m.findGaugeSample(g, labels)
	if s == nil {
		s = &gaugeSample{labels: labels}
		g.samples = append(g.samples, s)
	}
	s.value = s.value.Set(value)
	s.lastUpdate = now
	return nil
}

// IncrementGauge adds 1 to the sample for labels.
func (m *MetricCollection) IncrementGauge(name MetricName, labels *LabelSet, now time.Time) error {
	return m.addToGauge(name, labels, 1, now)
}

// DecrementGauge subtracts 1 from the sample for labels.
func (m *MetricCollection) DecrementGauge(name MetricName, labels *LabelSet, now time.Time) error {
	return m.addToGauge(name, labels, -1, now)
}

func (m *MetricCollection) addToGauge(name MetricName, labels *LabelSet, delta float64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, isCounter := m.counters[name]; isCounter {
		return ErrUnknownMetric
	}
	g, ok := m.gauges[name]
	if !ok {
		g = &gaugeMetric{}
		m.gauges[name] = g
	}
	s := m.findGaugeSample(g, labels)
	if s == nil {
		s = &gaugeSample{labels: labels}
		g.samples = append(g.samples, s)
	}
	if delta >= 0 {
		s.value = s.value.Increment(delta)
	} else {
		s.value = s.value.Decrement(-delta)
	}
	s.lastUpdate = now
	return nil
}

// Sum returns the sum of samples whose labels match criteria, and whether
// the metric exists at all (ok is false only if name is unknown).
func (m *MetricCollection) Sum(name MetricName, criteria map[string]string) (sum float64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, isCounter := m.counters[name]; isCounter {
		ok = true
		for _, s := range c.samples {
			if s.labels.Matches(criteria) {
				sum += float64(s.value)
			}
		}
		return sum, ok
	}
	if g, isGauge := m.gauges[name]; isGauge {
		ok = true
		for _, s := range g.samples {
			if s.labels.Matches(criteria) {
				sum += float64(s.value)
			}
		}
		return sum, ok
	}
	return 0, false
}

// Avg returns the average of matching samples; zero matches yields (0, true)
// per SPEC_FULL.md §4.1.
func (m *MetricCollection) Avg(name MetricName, criteria map[string]string) (avg float64, ok bool) {
	m.mu.Lock()
	count := 0
	var sum float64
	if c, isCounter := m.counters[name]; isCounter {
		ok = true
		for _, s := range c.samples {
			if s.labels.Matches(criteria) {
				sum += float64(s.value)
				count++
			}
		}
	} else if g, isGauge := m.gauges[name]; isGauge {
		ok = true
		for _, s := range g.samples {
			if s.labels.Matches(criteria) {
				sum += float64(s.value)
				count++
			}
		}
	}
	m.mu.Unlock()
	if !ok {
		return 0, false
	}
	if count == 0 {
		return 0, true
	}
	return sum / float64(count), true
}

// Merge unions other into m, returning an error if a metric name collides
// with a different kind.
func (m *MetricCollection) Merge(other *MetricCollection) error {
	other.mu.Lock()
	counters := make(map[MetricName]*counterMetric, len(other.counters))
	for k, v := range other.counters {
		counters[k] = v
	}
	gauges := make(map[MetricName]*gaugeMetric, len(other.gauges))
	for k, v := range other.gauges {
		gauges[k] = v
	}
	other.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	for name, c := range counters {
		if _, isGauge := m.gauges[name]; isGauge {
			return ErrUnknownMetric
		}
		existing, ok := m.counters[name]
		if !ok {
			m.counters[name] = c
			continue
		}
		for _, s := range c.samples {
			found := m.findCounterSample(existing, s.labels)
			if found == nil {
				existing.samples = append(existing.samples, s)
			} else if s.lastUpdate.After(found.lastUpdate) {
				found.value, found.lastUpdate = s.value, s.lastUpdate
			}
		}
	}
	for name, g := range gauges {
		if _, isCounter := m.counters[name]; isCounter {
			return ErrUnknownMetric
		}
		existing, ok := m.gauges[name]
		if !ok {
			m.gauges[name] = g
			continue
		}
		for _, s := range g.samples {
			found := m.findGaugeSample(existing, s.labels)
			if found == nil {
				existing.samples = append(existing.samples, s)
			} else if s.lastUpdate.After(found.lastUpdate) {
				found.value, found.lastUpdate = s.value, s.lastUpdate
			}
		}
	}
	return nil
}
