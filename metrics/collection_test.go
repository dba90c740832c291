package metrics

import (
	"math"
	"testing"
	"time"
)

func TestSanitizeIdempotent(t *testing.T) {
	cases := []string{"ok_name", "bad name!", "__reserved", "___already", "123leading"}
	for _, c := range cases {
		once := Sanitize(c)
		twice := Sanitize(once)
		if once != twice {
			t.Errorf("Sanitize(%q) = %q, Sanitize(that) = %q", c, once, twice)
		}
		onceL := SanitizeLabel(c)
		twiceL := SanitizeLabel(onceL)
		if onceL != twiceL {
			t.Errorf("SanitizeLabel(%q) = %q, SanitizeLabel(that) = %q", c, onceL, twiceL)
		}
	}
}

func TestEmptyNameRejected(t *testing.T) {
	if _, err := NewMetricName(""); err != ErrEmptyName {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if _, err := NewLabelName(""); err != ErrEmptyName {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}

func TestCounterIncrementAndSum(t *testing.T) {
	m := New()
	name, _ := NewMetricName("requests_total")
	now := time.Now()

	labels := NewLabelSet().With("kind", "announce")
	if err := m.IncrementCounter(name, labels, now); err != nil {
		t.Fatal(err)
	}
	if err := m.IncrementCounter(name, labels, now); err != nil {
		t.Fatal(err)
	}

	other := NewLabelSet().With("kind", "scrape")
	if err := m.IncrementCounter(name, other, now); err != nil {
		t.Fatal(err)
	}

	sum, ok := m.Sum(name, map[string]string{"kind": "announce"})
	if !ok || sum != 2 {
		t.Fatalf("expected sum=2 ok=true, got sum=%v ok=%v", sum, ok)
	}

	total, ok := m.Sum(name, nil)
	if !ok || total != 3 {
		t.Fatalf("expected total=3, got %v", total)
	}
}

func TestGaugeTypeCollision(t *testing.T) {
	m := New()
	name, _ := NewMetricName("mixed")
	now := time.Now()
	if err := m.IncrementCounter(name, NewLabelSet(), now); err != nil {
		t.Fatal(err)
	}
	if err := m.SetGauge(name, NewLabelSet(), 1.0, now); err != ErrUnknownMetric {
		t.Fatalf("expected ErrUnknownMetric, got %v", err)
	}
}

func TestAvgOverZeroMatchesIsZero(t *testing.T) {
	m := New()
	name, _ := NewMetricName("latency")
	now := time.Now()
	if err := m.SetGauge(name, NewLabelSet().With("k", "v"), 10, now); err != nil {
		t.Fatal(err)
	}
	avg, ok := m.Avg(name, map[string]string{"k": "nope"})
	if !ok || avg != 0 {
		t.Fatalf("expected (0, true), got (%v, %v)", avg, ok)
	}
}

func TestGaugePrometheusSpecialValues(t *testing.T) {
	cases := map[Gauge]string{
		NewGauge(1):             "1",
		NewGauge(math.Inf(1)):   "inf",
		NewGauge(math.Inf(-1)):  "-inf",
		NewGauge(math.NaN()):    "NaN",
	}
	for g, want := range cases {
		if got := g.ToPrometheus(); got != want {
			t.Errorf("ToPrometheus() = %q, want %q", got, want)
		}
	}
}
