// Package metrics instruments objective evaluations with Prometheus.
package metrics

import (
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

const namespace = "spdenll"

// Evaluation kinds.
const (
	KindValue    = "value"
	KindGradient = "gradient"
	KindHessian  = "hessian"
)

// DefaultDurationBuckets span a one-vertex value call up to a full
// hyperdual Hessian of a mesh problem.
var DefaultDurationBuckets = []float64{1e-5, 1e-4, 1e-3, .01, .1, 1, 10, 60}

// Recorder holds the evaluation metrics.
type Recorder struct {
	Evaluations *prometheus.CounterVec
	NonFinite   *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
}

// NewRecorder registers the metrics with reg. A nil reg uses the default
// registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Objective evaluations by kind.",
		}, []string{"kind"}),
		NonFinite: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "non_finite_total",
			Help:      "Objective evaluations that returned NaN or Inf.",
		}, []string{"kind"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Wall time of objective evaluations.",
			Buckets:   DefaultDurationBuckets,
		}, []string{"kind"}),
	}
}

// Observe records one evaluation of the given kind.
func (r *Recorder) Observe(kind string, start time.Time, value float64) {
	r.Evaluations.WithLabelValues(kind).Inc()
	r.Duration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if math.IsNaN(value) || math.IsInf(value, 0) {
		r.NonFinite.WithLabelValues(kind).Inc()
	}
}

// Instrument wraps the callbacks of p so that every call is recorded.
// Missing callbacks stay nil.
func (r *Recorder) Instrument(p optimize.Problem) optimize.Problem {
	out := p
	if p.Func != nil {
		out.Func = func(x []float64) float64 {
			start := time.Now()
			v := p.Func(x)
			r.Observe(KindValue, start, v)
			return v
		}
	}
	if p.Grad != nil {
		out.Grad = func(grad, x []float64) {
			start := time.Now()
			p.Grad(grad, x)
			r.Observe(KindGradient, start, nonFinite(grad))
		}
	}
	if p.Hess != nil {
		out.Hess = func(hess *mat.SymDense, x []float64) {
			start := time.Now()
			p.Hess(hess, x)
			r.Observe(KindHessian, start, symNonFinite(hess))
		}
	}
	return out
}

// nonFinite returns the first NaN or infinite entry of v, or 0.
func nonFinite(v []float64) float64 {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return x
		}
	}
	return 0
}

// symNonFinite is nonFinite over the upper triangle of h.
func symNonFinite(h *mat.SymDense) float64 {
	n := h.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if v := h.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return v
			}
		}
	}
	return 0
}
