package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Render produces the Prometheus text exposition format for the whole
// collection. This is the spec-mandated, directly unit-testable contract;
// the Collector below is a thin adapter exposing the same samples through
// github.com/prometheus/client_golang for a real /metrics scrape endpoint.
func (m *MetricCollection) Render() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var b strings.Builder
	names := make([]string, 0, len(m.counters)+len(m.gauges))
	for n := range m.counters {
		names = append(names, n.String())
	}
	sort.Strings(names)
	for _, n := range names {
		renderMetric(&b, n, "counter", m.counters[MetricName(n)].description, m.counters[MetricName(n)].samples)
	}

	gnames := make([]string, 0, len(m.gauges))
	for n := range m.gauges {
		gnames = append(gnames, n.String())
	}
	sort.Strings(gnames)
	for _, n := range gnames {
		renderMetric(&b, n, "gauge", m.gauges[MetricName(n)].description, m.gauges[MetricName(n)].samples)
	}
	return b.String()
}

func renderMetric(b *strings.Builder, name, kind, description string, samples interface{}) {
	if description != "" {
		fmt.Fprintf(b, "# HELP %s %s\n", name, description)
	}
	fmt.Fprintf(b, "# TYPE %s %s\n", name, kind)

	switch s := samples.(type) {
	case []*counterSample:
		for _, sample := range s {
			fmt.Fprintf(b, "%s%s %s\n", name, renderLabels(sample.labels), sample.value.ToPrometheus())
		}
	case []*gaugeSample:
		for _, sample := range s {
			fmt.Fprintf(b, "%s%s %s\n", name, renderLabels(sample.labels), sample.value.ToPrometheus())
		}
	}
}

func renderLabels(l *LabelSet) string {
	pairs := l.Pairs()
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, fmt.Sprintf("%s=%q", p[0], p[1]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Collector adapts a MetricCollection to prometheus.Collector using the
// "unchecked collector" idiom: Describe sends nothing (so the client_golang
// registry never validates descriptors against static metadata), and
// Collect builds a fresh *prometheus.Desc per sample on every scrape. This
// is necessary because the collection's label sets are fully dynamic, unlike
// client_golang's own static-Desc model.
type Collector struct {
	collection *MetricCollection
}

// NewCollector wraps collection for registration with a prometheus.Registry.
func NewCollector(collection *MetricCollection) *Collector {
	return &Collector{collection: collection}
}

// Describe intentionally sends no descriptors; see the unchecked-collector
// note above.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {}

// Collect emits one prometheus.Metric per sample currently held.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.collection.mu.Lock()
	defer c.collection.mu.Unlock()

	for name, cm := range c.collection.counters {
		for _, s := range cm.samples {
			emit(ch, name.String(), cm.description, prometheus.CounterValue, float64(s.value), s.labels)
		}
	}
	for name, gm := range c.collection.gauges {
		for _, s := range gm.samples {
			emit(ch, name.String(), gm.description, prometheus.GaugeValue, float64(s.value), s.labels)
		}
	}
}

func emit(ch chan<- prometheus.Metric, name, help string, kind prometheus.ValueType, value float64, labels *LabelSet) {
	pairs := labels.Pairs()
	labelNames := make([]string, 0, len(pairs))
	labelValues := make([]string, 0, len(pairs))
	for _, p := range pairs {
		labelNames = append(labelNames, p[0])
		labelValues = append(labelValues, p[1])
	}
	desc := prometheus.NewDesc(name, help, labelNames, nil)
	m, err := prometheus.NewConstMetric(desc, kind, value, labelValues...)
	if err != nil {
		return
	}
	ch <- m
}
