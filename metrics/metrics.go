// Package metrics exposes Prometheus counters for mixing runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Restart paths.
const (
	RestartCheap = "cheap"
	RestartBlame = "blame"
)

// Collector counts the progress of one mixing engine. Each collector is
// registered on its own Registerer so several engines can share a process.
type Collector struct {
	runs       prometheus.Counter
	restarts   *prometheus.CounterVec
	exclusions *prometheus.CounterVec
	keyReveals prometheus.Counter
	successes  prometheus.Counter
	solve      prometheus.Histogram
}

// NewCollector creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		runs: factory.NewCounter(prometheus.CounterOpts{
			Name: "dicemix_runs_total",
			Help: "Runs started",
		}),
		restarts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dicemix_restarts_total",
			Help: "Runs abandoned, by the path the next run takes",
		}, []string{"path"}),
		exclusions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dicemix_exclusions_total",
			Help: "Peers removed from the active set, by reason",
		}, []string{"reason"}),
		keyReveals: factory.NewCounter(prometheus.CounterOpts{
			Name: "dicemix_key_reveals_total",
			Help: "Runs that started by revealing the previous key exchange secret",
		}),
		successes: factory.NewCounter(prometheus.CounterOpts{
			Name: "dicemix_successes_total",
			Help: "Runs that ended with a confirmed message set",
		}),
		solve: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dicemix_solver_duration_seconds",
			Help:    "Time spent recovering slot reservations",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
}

// RunStarted counts every run the engine starts.
func (c *Collector) RunStarted() {
	c.runs.Inc()
}

// Restarted counts a restart taking path, RestartCheap or RestartBlame.
func (c *Collector) Restarted(path string) {
	c.restarts.WithLabelValues(path).Inc()
}

// Excluded counts one peer excluded for reason.
func (c *Collector) Excluded(reason string) {
	c.exclusions.WithLabelValues(reason).Inc()
}

// KeyRevealed counts a reveal of this engine's run secret.
func (c *Collector) KeyRevealed() {
	c.keyReveals.Inc()
}

// Succeeded counts a confirmed run.
func (c *Collector) Succeeded() {
	c.successes.Inc()
}

// ObserveSolve records how long slot recovery took.
func (c *Collector) ObserveSolve(d time.Duration) {
	c.solve.Observe(d.Seconds())
}

// Snapshot reads the counters back, mostly for tests and status output.
type Snapshot struct {
	Runs       float64
	KeyReveals float64
	Successes  float64
}

// Snapshot returns the current counter values.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Runs:       counterValue(c.runs),
		KeyReveals: counterValue(c.keyReveals),
		Successes:  counterValue(c.successes),
	}
}
