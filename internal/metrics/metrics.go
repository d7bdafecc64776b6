// Package metrics exposes Prometheus collectors for report parsing and
// import runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/pipeline-import/internal/model"
)

// Recorder holds the collectors registered for one process.
type Recorder struct {
	reg *prometheus.Registry

	parses       *prometheus.CounterVec
	extractions  *prometheus.HistogramVec
	imports      *prometheus.CounterVec
	dealOutcomes *prometheus.CounterVec
}

// New creates a Recorder with its own registry, including the Go runtime
// and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Recorder{
		reg: reg,
		parses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipeline_import",
			Name:      "parse_requests_total",
			Help:      "Report parse requests by parsing method and outcome.",
		}, []string{"method", "outcome"}),
		extractions: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pipeline_import",
			Name:      "extraction_duration_seconds",
			Help:      "Latency of model-based report extraction.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"mode"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipeline_import",
			Name:      "import_runs_total",
			Help:      "Import runs by mode (preview or commit) and terminal state.",
		}, []string{"mode", "state"}),
		dealOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipeline_import",
			Name:      "deal_outcomes_total",
			Help:      "Per-deal import outcomes by action.",
		}, []string{"action", "result"}),
	}
	reg.MustRegister(r.parses, r.extractions, r.imports, r.dealOutcomes)
	return r
}

// Registry returns the registry backing this recorder.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveParse counts one parse request. An empty method means the input
// was rejected before a parser was chosen.
func (r *Recorder) ObserveParse(method model.ParsingMethod, err error) {
	if r == nil {
		return
	}
	m := string(method)
	if m == "" {
		m = "none"
	}
	r.parses.WithLabelValues(m, outcome(err)).Inc()
}

// ObserveExtraction records the latency of one extraction call.
func (r *Recorder) ObserveExtraction(mode string, d time.Duration) {
	if r == nil {
		return
	}
	r.extractions.WithLabelValues(mode).Observe(d.Seconds())
}

// ObservePreview counts a dry-run plan.
func (r *Recorder) ObservePreview() {
	if r == nil {
		return
	}
	r.imports.WithLabelValues("preview", string(model.ImportPreviewed)).Inc()
}

// ObserveImport counts an executed import and its per-deal outcomes.
func (r *Recorder) ObserveImport(res *model.ImportResult) {
	if r == nil || res == nil {
		return
	}
	r.imports.WithLabelValues("commit", string(res.State)).Inc()
	for _, d := range res.Deals {
		result := "ok"
		if d.Error != "" {
			result = "error"
		}
		r.dealOutcomes.WithLabelValues(string(d.Action), result).Inc()
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
