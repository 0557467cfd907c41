package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink receives pipeline measurements. Implementations must not block.
type Sink interface {
	StageCompleted(stage string, duration time.Duration, err error)
	RunCompleted(variant string, duration time.Duration, err error)
	LLMTokens(stage string, tokens int)
	ScrapeCompleted(placeholders int, err error)
	RenderCompleted(template string, success bool)
}

type Noop struct{}

func (Noop) StageCompleted(string, time.Duration, error) {}
func (Noop) RunCompleted(string, time.Duration, error)   {}
func (Noop) LLMTokens(string, int)                       {}
func (Noop) ScrapeCompleted(int, error)                  {}
func (Noop) RenderCompleted(string, bool)                {}

type PrometheusSink struct {
	stagesTotal     *prometheus.CounterVec
	stageFailures   *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	tokensTotal     *prometheus.CounterVec
	scrapesTotal    *prometheus.CounterVec
	placeholderHist prometheus.Histogram
	rendersTotal    *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors on reg. Registration failures
// are logged and the sink stays usable.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		stagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "applycrew_stage_runs_total",
			Help: "Total number of pipeline stages executed.",
		}, []string{"stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "applycrew_stage_failures_total",
			Help: "Total number of pipeline stages that failed.",
		}, []string{"stage"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "applycrew_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "applycrew_runs_total",
			Help: "Total number of pipeline runs by variant and outcome.",
		}, []string{"variant", "outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "applycrew_run_duration_seconds",
			Help:    "End-to-end run duration in seconds.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "applycrew_llm_tokens_total",
			Help: "Total LLM tokens consumed per stage.",
		}, []string{"stage"}),
		scrapesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "applycrew_scrapes_total",
			Help: "Total number of job page scrapes by outcome.",
		}, []string{"outcome"}),
		placeholderHist: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "applycrew_scrape_placeholder_fields",
			Help:    "Number of posting fields that fell back to a placeholder.",
			Buckets: []float64{0, 1, 2, 3, 4},
		}),
		rendersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "applycrew_renders_total",
			Help: "Total number of document renders by template and outcome.",
		}, []string{"template", "outcome"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"applycrew_stage_runs_total":          s.stagesTotal,
		"applycrew_stage_failures_total":      s.stageFailures,
		"applycrew_stage_duration_seconds":    s.stageDuration,
		"applycrew_runs_total":                s.runsTotal,
		"applycrew_run_duration_seconds":      s.runDuration,
		"applycrew_llm_tokens_total":          s.tokensTotal,
		"applycrew_scrapes_total":             s.scrapesTotal,
		"applycrew_scrape_placeholder_fields": s.placeholderHist,
		"applycrew_renders_total":             s.rendersTotal,
	} {
		if err := reg.Register(c); err != nil {
			slog.Warn("failed to register metric", "component", "metrics", "name", name, "error", err)
		}
	}
	return s
}

func (s *PrometheusSink) StageCompleted(stage string, d time.Duration, err error) {
	s.stagesTotal.WithLabelValues(stage).Inc()
	s.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		s.stageFailures.WithLabelValues(stage).Inc()
	}
}

func (s *PrometheusSink) RunCompleted(variant string, d time.Duration, err error) {
	s.runsTotal.WithLabelValues(variant, outcome(err == nil)).Inc()
	s.runDuration.Observe(d.Seconds())
}

func (s *PrometheusSink) LLMTokens(stage string, tokens int) {
	if tokens > 0 {
		s.tokensTotal.WithLabelValues(stage).Add(float64(tokens))
	}
}

func (s *PrometheusSink) ScrapeCompleted(placeholders int, err error) {
	s.scrapesTotal.WithLabelValues(outcome(err == nil)).Inc()
	if err == nil {
		s.placeholderHist.Observe(float64(placeholders))
	}
}

func (s *PrometheusSink) RenderCompleted(template string, success bool) {
	s.rendersTotal.WithLabelValues(template, outcome(success)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
