package ccrt

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metricsNamespace groups every gauge/counter this package exposes under
// one Prometheus namespace, the way shockwave's buffer pool metrics are
// all namespaced "shockwave"/"buffer_pool".
const metricsNamespace = "rustcc"

// Collector implements prometheus.Collector by pulling live values out of
// state.go and the default Trigger at scrape time, rather than keeping a
// promauto counter updated on every mutation — there is no periodic
// updater goroutine to run one from, since this library assumes a single
// mutator and never spawns background goroutines of its own.
type Collector struct {
	allocatedBytes *prometheus.Desc
	executions     *prometheus.Desc
	possibleCycles *prometheus.Desc
	bytesThreshold *prometheus.Desc
	triggerChecks  *prometheus.Desc
	triggerFired   *prometheus.Desc
}

// NewCollector returns a Collector ready to be passed to
// prometheus.Registry.MustRegister. A process embedding more than one
// independently-collecting ccrt (there is only ever one, package-level)
// would still only ever need one Collector.
func NewCollector() *Collector {
	return &Collector{
		allocatedBytes: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "allocated_bytes"),
			"Bytes currently attributed to live Cc allocations.",
			nil, nil,
		),
		executions: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "collections_total"),
			"Number of completed cycle collections.",
			nil, nil,
		),
		possibleCycles: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "possible_cycles_buffered"),
			"Number of headers currently buffered awaiting the next collection.",
			nil, nil,
		),
		bytesThreshold: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "bytes_threshold"),
			"Current allocated-bytes threshold that triggers an automatic collection.",
			nil, nil,
		),
		triggerChecks: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "trigger_checks_total"),
			"Number of times the auto-collect trigger was evaluated.",
			nil, nil,
		),
		triggerFired: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "trigger_fired_total"),
			"Number of times the auto-collect trigger decided to run a collection.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.allocatedBytes
	ch <- c.executions
	ch <- c.possibleCycles
	ch <- c.bytesThreshold
	ch <- c.triggerChecks
	ch <- c.triggerFired
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.allocatedBytes, prometheus.GaugeValue, float64(AllocatedBytes()))
	ch <- prometheus.MustNewConstMetric(c.executions, prometheus.CounterValue, float64(ExecutionsCount()))
	ch <- prometheus.MustNewConstMetric(c.possibleCycles, prometheus.GaugeValue, float64(PossibleCycles().Len()))

	trigger := DefaultTrigger()
	stats := trigger.Stats()
	ch <- prometheus.MustNewConstMetric(c.bytesThreshold, prometheus.GaugeValue, float64(trigger.BytesThreshold()))
	ch <- prometheus.MustNewConstMetric(c.triggerChecks, prometheus.CounterValue, float64(stats.Checks))
	ch <- prometheus.MustNewConstMetric(c.triggerFired, prometheus.CounterValue, float64(stats.Triggered))
}
