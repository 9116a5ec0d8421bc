package renderer

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	renders   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	baseLevel prometheus.Gauge
}

func newMetrics(owner any, reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	labels := prometheus.Labels{"owner": fmt.Sprint(owner)}
	return &metrics{
		renders: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "frep_renders_total",
			Help:        "Render passes by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "frep_render_duration_seconds",
			Help:        "Wall time of completed render passes",
			ConstLabels: labels,
			Buckets:     []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.5, 1},
		}, []string{"level"}),
		baseLevel: f.NewGauge(prometheus.GaugeOpts{
			Name:        "frep_base_level",
			Help:        "Current base subdivision level",
			ConstLabels: labels,
		}),
	}
}

func level(l int) string { return strconv.Itoa(l) }
