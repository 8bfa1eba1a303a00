package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives engine-level events. Services depend on this interface
// so tests can pass NopRecorder.
type Recorder interface {
	ObserveRecompute(d time.Duration, appended int, err error)
	ObserveStatsCache(hit bool)
	ObserveSync(imported int, err error)
}

type NopRecorder struct{}

func (NopRecorder) ObserveRecompute(time.Duration, int, error) {}
func (NopRecorder) ObserveStatsCache(bool)                     {}
func (NopRecorder) ObserveSync(int, error)                     {}

type PrometheusRecorder struct {
	recomputes       *prometheus.CounterVec
	recomputeLatency prometheus.Histogram
	snapshots        prometheus.Counter
	statsCache       *prometheus.CounterVec
	syncs            *prometheus.CounterVec
	imported         prometheus.Counter
}

func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		recomputes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rides",
			Name:      "position_recomputes_total",
			Help:      "Position recomputations by outcome",
		}, []string{"outcome"}),
		recomputeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rides",
			Name:      "position_recompute_duration_seconds",
			Help:      "Duration of one challenge position recomputation",
			Buckets:   prometheus.DefBuckets,
		}),
		snapshots: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rides",
			Name:      "position_snapshots_appended_total",
			Help:      "Position snapshots appended after a rank change",
		}),
		statsCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rides",
			Name:      "statistics_cache_lookups_total",
			Help:      "Population statistics cache lookups by result",
		}, []string{"result"}),
		syncs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rides",
			Name:      "activity_syncs_total",
			Help:      "Activity provider synchronisations by outcome",
		}, []string{"outcome"}),
		imported: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rides",
			Name:      "activities_imported_total",
			Help:      "Activities imported from the provider",
		}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (p *PrometheusRecorder) ObserveRecompute(d time.Duration, appended int, err error) {
	p.recomputes.WithLabelValues(outcome(err)).Inc()
	p.recomputeLatency.Observe(d.Seconds())
	if err == nil {
		p.snapshots.Add(float64(appended))
	}
}

func (p *PrometheusRecorder) ObserveStatsCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.statsCache.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) ObserveSync(imported int, err error) {
	p.syncs.WithLabelValues(outcome(err)).Inc()
	p.imported.Add(float64(imported))
}
