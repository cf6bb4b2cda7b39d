// Package metrics records per-year pipeline metrics and writes them in the
// Prometheus text format for the node_exporter textfile collector.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/eventsync/internal/model"
)

// Recorder holds the run's metrics on a private registry.
type Recorder struct {
	reg        *prometheus.Registry
	stageRows  *prometheus.GaugeVec
	sinkWrites *prometheus.CounterVec
	yearSecs   *prometheus.GaugeVec
	lastRun    prometheus.Gauge
}

// New creates a Recorder with all metrics registered.
func New() *Recorder {
	r := &Recorder{reg: prometheus.NewRegistry()}

	r.stageRows = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "eventsync",
		Name:      "stage_rows",
		Help:      "Rows left after each pipeline stage, by year",
	}, []string{"year", "stage"})
	r.sinkWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventsync",
		Name:      "sink_writes_total",
		Help:      "Yearly batch writes by sink and status",
	}, []string{"sink", "status"})
	r.yearSecs = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "eventsync",
		Name:      "year_duration_seconds",
		Help:      "Wall time spent processing a year",
	}, []string{"year"})
	r.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "eventsync",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the last finished run",
	})

	r.reg.MustRegister(r.stageRows, r.sinkWrites, r.yearSecs, r.lastRun)
	return r
}

// ObserveYear records the stage counts and duration of one year.
func (r *Recorder) ObserveYear(year int, counts model.StageCounts, elapsed time.Duration) {
	y := strconv.Itoa(year)
	r.stageRows.WithLabelValues(y, "fetched").Set(float64(counts.Fetched))
	r.stageRows.WithLabelValues(y, "normalized").Set(float64(counts.Normalized))
	r.stageRows.WithLabelValues(y, "deduplicated").Set(float64(counts.Deduplicated))
	r.stageRows.WithLabelValues(y, "enriched").Set(float64(counts.Enriched))
	r.stageRows.WithLabelValues(y, "filtered").Set(float64(counts.Filtered))
	r.yearSecs.WithLabelValues(y).Set(elapsed.Seconds())
}

// ObserveSink counts one sink write.
func (r *Recorder) ObserveSink(sink string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.sinkWrites.WithLabelValues(sink, status).Inc()
}

// Finish stamps the run completion time.
func (r *Recorder) Finish(at time.Time) {
	r.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes all metrics to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return eris.Wrapf(err, "metrics: write %s", path)
	}
	return nil
}
