package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusFactory is a MetricFactory backed by Prometheus collectors.
// Dotted metric names are rewritten to Prometheus form, so
// "batterybank.ledger.deposits" becomes "batterybank_ledger_deposits".
type PrometheusFactory struct {
	reg prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

var _ MetricFactory = (*PrometheusFactory)(nil)

// NewPrometheusFactory registers collectors on reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewPrometheusFactory(reg prometheus.Registerer) *PrometheusFactory {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusFactory{
		reg:        reg,
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Counter returns the counter registered under name, creating it on first use.
func (f *PrometheusFactory) Counter(name string) Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := metricName(name)
	if c, ok := f.counters[key]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: key,
		Help: "Battery bank counter " + name + ".",
	})
	f.counters[key] = register(f.reg, c)
	return f.counters[key]
}

// Histogram returns the histogram registered under name, creating it on first use.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := metricName(name)
	if h, ok := f.histograms[key]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    key,
		Help:    "Battery bank histogram " + name + ".",
		Buckets: histogramBuckets(key),
	})
	f.histograms[key] = register(f.reg, h)
	return f.histograms[key]
}

// register adds c to reg, reusing a collector another factory registered
// under the same name.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// ratioHistograms observe fractions in [0, 1] rather than kWh amounts.
var ratioHistograms = map[string]bool{
	"batterybank_ledger_history_utilization": true,
}

func histogramBuckets(key string) []float64 {
	if ratioHistograms[key] {
		return prometheus.LinearBuckets(0.1, 0.1, 10)
	}
	return prometheus.ExponentialBuckets(1, 4, 10)
}

func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
