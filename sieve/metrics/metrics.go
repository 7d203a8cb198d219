// Package metrics is ambient observability for the engine, grounded
// the same way the rest of the retrieval pack instruments its mail
// servers: promauto-registered collectors a caller never has to wire
// up by hand, scraped over /metrics by main.go's
// /metrics HTTP listener.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CompileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sievegate_compile_total",
		Help: "Total Sieve script compilations by outcome",
	}, []string{"outcome"})

	CompileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sievegate_compile_duration_seconds",
		Help:    "Time taken to compile a Sieve script to bytecode",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	RunTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sievegate_run_total",
		Help: "Total interpreter runs by terminal status",
	}, []string{"status"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sievegate_run_duration_seconds",
		Help:    "Wall-clock time of one script execution",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 12),
	})

	ActionsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sievegate_actions_emitted_total",
		Help: "Finalized actions emitted by a script run, by kind",
	}, []string{"kind"})

	BincacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sievegate_bincache_total",
		Help: "Compiled-binary cache lookups by outcome (hit/miss/store)",
	}, []string{"outcome"})

	ManageSieveCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sievegate_managesieve_commands_total",
		Help: "ManageSieve commands handled by command and reply tag",
	}, []string{"command", "tag"})

	ManageSieveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sievegate_managesieve_connections",
		Help: "Currently open ManageSieve connections",
	})
)

// RecordCompile records one compilation's outcome and duration.
func RecordCompile(ok bool, d time.Duration) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	CompileTotal.WithLabelValues(outcome).Inc()
	CompileDuration.Observe(d.Seconds())
}

// RecordRun records one interpreter run's terminal status and duration.
func RecordRun(status string, d time.Duration) {
	RunTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(d.Seconds())
}

// RecordCommand records one handled ManageSieve command.
func RecordCommand(command, tag string) {
	ManageSieveCommands.WithLabelValues(command, tag).Inc()
}
