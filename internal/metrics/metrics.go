// Package metrics holds the Prometheus counters of the orchestrator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "dtp"

// Metrics groups the counters shared by all components. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	ToolchainInvocations *prometheus.CounterVec
	ToolchainFailures    *prometheus.CounterVec
	RunnerCommands       *prometheus.CounterVec
	RunnerStarts         prometheus.Counter
	RunnerExits          prometheus.Counter
	DiscoveryCache       *prometheus.CounterVec
	PollTimeouts         prometheus.Counter
}

// New registers the counters with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ToolchainInvocations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "toolchain_invocations_total",
			Help:      "Count of build toolchain invocations",
		}, []string{"verb"}),
		ToolchainFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "toolchain_failures_total",
			Help:      "Count of failed build toolchain invocations",
		}, []string{"verb"}),
		RunnerCommands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runner_commands_total",
			Help:      "Count of commands written to the runner subprocess",
		}, []string{"verb"}),
		RunnerStarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runner_starts_total",
			Help:      "Count of runner subprocess launches",
		}),
		RunnerExits: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runner_exits_total",
			Help:      "Count of observed runner subprocess exits",
		}),
		DiscoveryCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "discovery_cache_total",
			Help:      "Discovery cache lookups by result",
		}, []string{"result"}),
		PollTimeouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "poll_timeouts_total",
			Help:      "Count of poll-waits that gave up",
		}),
	}
}

func (m *Metrics) ToolchainInvoked(verb string) {
	if m == nil {
		return
	}
	m.ToolchainInvocations.WithLabelValues(verb).Inc()
}

func (m *Metrics) ToolchainFailed(verb string) {
	if m == nil {
		return
	}
	m.ToolchainFailures.WithLabelValues(verb).Inc()
}

func (m *Metrics) RunnerCommand(verb string) {
	if m == nil {
		return
	}
	m.RunnerCommands.WithLabelValues(verb).Inc()
}

func (m *Metrics) RunnerStarted() {
	if m == nil {
		return
	}
	m.RunnerStarts.Inc()
}

func (m *Metrics) RunnerExited() {
	if m == nil {
		return
	}
	m.RunnerExits.Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.DiscoveryCache.WithLabelValues(result).Inc()
}

func (m *Metrics) PollTimedOut() {
	if m == nil {
		return
	}
	m.PollTimeouts.Inc()
}
