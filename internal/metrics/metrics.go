// Package metrics counts pipeline outcomes in a private Prometheus registry
// that is flushed to a node_exporter textfile at the end of a run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "slopeunits"

// Collector holds the pipeline's metrics.
type Collector struct {
	registry *prometheus.Registry

	regions       *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	units         *prometheus.CounterVec
	lastRunUnixNs prometheus.Gauge
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		regions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "regions_total",
			Help:      "Regions processed, by stage and outcome.",
		}, []string{"stage", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "region_duration_seconds",
			Help:      "Wall time spent on one region.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Slope units seen by the filter, by decision.",
		}, []string{"decision"}),
		lastRunUnixNs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_finished_unix_ns",
			Help:      "Time the last batch finished.",
		}),
	}
	c.registry.MustRegister(c.regions, c.duration, c.units, c.lastRunUnixNs)
	return c
}

// Registry exposes the underlying registry as a Gatherer.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// RegionSucceeded records a finished region and its filter outcome.
func (c *Collector) RegionSucceeded(stage string, d time.Duration, unitsTotal, unitsKept int) {
	c.regions.WithLabelValues(stage, "ok").Inc()
	c.duration.WithLabelValues(stage).Observe(d.Seconds())
	if unitsTotal > 0 {
		c.units.WithLabelValues("kept").Add(float64(unitsKept))
		c.units.WithLabelValues("dropped").Add(float64(unitsTotal - unitsKept))
	}
}

// RegionFailed records a failed region.
func (c *Collector) RegionFailed(stage string, d time.Duration) {
	c.regions.WithLabelValues(stage, "failed").Inc()
	c.duration.WithLabelValues(stage).Observe(d.Seconds())
}

// BatchFinished stamps the end of a batch.
func (c *Collector) BatchFinished(at time.Time) {
	c.lastRunUnixNs.Set(float64(at.UnixNano()))
}

// WriteTextfile writes the registry in text exposition format to path.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
