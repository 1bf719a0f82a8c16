package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "steelifc"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg             *prom.Registry
	elements        *prom.CounterVec
	facets          *prom.CounterVec
	elementDuration *prom.HistogramVec
	exportDuration  *prom.HistogramVec
}

// NewPrometheusRecorder constructs the export metrics and registers them on
// reg. A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.elements = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "elements_total",
		Help:      "Exported elements by kind and outcome",
	}, []string{"kind", "outcome"})
	pr.facets = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "facets_total",
		Help:      "Triangular facets written, by element kind",
	}, []string{"kind"})
	pr.elementDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "element_duration_seconds",
		Help:      "Time to triangulate and insert one element",
		Buckets:   prom.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"kind"})
	pr.exportDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "export_duration_seconds",
		Help:      "Total export duration including serialization",
		Buckets:   prom.DefBuckets,
	}, []string{"result"})
	reg.MustRegister(pr.elements, pr.facets, pr.elementDuration, pr.exportDuration)
	return pr
}

// Registry returns the registry the metrics are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.reg
}

func (p *PrometheusRecorder) IncElement(kind string, outcome OutcomeLabel) {
	if p == nil || p.elements == nil {
		return
	}
	p.elements.WithLabelValues(kind, string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddFacets(kind string, n int) {
	if p == nil || p.facets == nil || n <= 0 {
		return
	}
	p.facets.WithLabelValues(kind).Add(float64(n))
}

func (p *PrometheusRecorder) ObserveElementDuration(kind string, d time.Duration) {
	if p == nil || p.elementDuration == nil {
		return
	}
	p.elementDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveExportDuration(d time.Duration, success bool) {
	if p == nil || p.exportDuration == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.exportDuration.WithLabelValues(res).Observe(d.Seconds())
}

// WriteTextfile writes every metric on the registry to path in the text
// exposition format, for node_exporter's textfile collector.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, p.reg)
}
