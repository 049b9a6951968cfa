package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once              sync.Once
	runDuration       *prom.HistogramVec
	runOutcome        *prom.CounterVec
	collectionResults *prom.CounterVec
	entriesResolved   *prom.GaugeVec
	deliveryResults   *prom.CounterVec
	commits           *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.runDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "shelfsync",
			Name:      "run_duration_seconds",
			Help:      "Duration of build and notify runs",
			Buckets:   prom.DefBuckets,
		}, []string{"kind"})
		pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "shelfsync",
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by final status",
		}, []string{"kind", "outcome"})
		pr.collectionResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "shelfsync",
			Name:      "collection_results_total",
			Help:      "Per-collection results by outcome",
		}, []string{"collection", "result"})
		pr.entriesResolved = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "shelfsync",
			Name:      "entries_resolved",
			Help:      "Entries resolved in the last run, per collection",
		}, []string{"collection"})
		pr.deliveryResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "shelfsync",
			Name:      "delivery_results_total",
			Help:      "Notification delivery results",
		}, []string{"result"})
		pr.commits = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "shelfsync",
			Name:      "commits_total",
			Help:      "Gatekeeper outcomes: committed vs no-change",
		}, []string{"result"})
		reg.MustRegister(pr.runDuration, pr.runOutcome, pr.collectionResults, pr.entriesResolved, pr.deliveryResults, pr.commits)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveRunDuration(kind string, d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(kind, outcome string) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(kind, outcome).Inc()
}

func (p *PrometheusRecorder) IncCollectionResult(collection string, result ResultLabel) {
	if p == nil || p.collectionResults == nil {
		return
	}
	p.collectionResults.WithLabelValues(collection, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveEntriesResolved(collection string, n int) {
	if p == nil || p.entriesResolved == nil {
		return
	}
	p.entriesResolved.WithLabelValues(collection).Set(float64(n))
}

func (p *PrometheusRecorder) IncDeliveryResult(success bool) {
	if p == nil || p.deliveryResults == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.deliveryResults.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) IncCommit(committed bool) {
	if p == nil || p.commits == nil {
		return
	}
	res := "no_change"
	if committed {
		res = "committed"
	}
	p.commits.WithLabelValues(res).Inc()
}
