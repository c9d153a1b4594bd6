package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	agentRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supplysql_agent_runs_total",
			Help: "Total number of agent runs by prompt strategy and outcome.",
		},
		[]string{"strategy", "outcome"},
	)
	agentTurns = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "supplysql_agent_turns",
			Help:    "Model invocations per agent run.",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 12, 15, 20},
		},
	)
	agentRunDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "supplysql_agent_run_duration_seconds",
			Help:    "Wall-clock duration of agent runs.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)
	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supplysql_tool_calls_total",
			Help: "Total number of tool invocations by tool and status.",
		},
		[]string{"tool", "status"},
	)
	retrievalFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "supplysql_retrieval_fallbacks_total",
			Help: "Requests that fell back to the static prompt because example retrieval failed.",
		},
	)
	upstreamRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supplysql_upstream_retries_total",
			Help: "Retried calls to the model or embedding provider.",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(
		agentRunsTotal,
		agentTurns,
		agentRunDurationSeconds,
		toolCallsTotal,
		retrievalFallbacksTotal,
		upstreamRetriesTotal,
	)
}

func ObserveAgentRun(strategy, outcome string, turns int, elapsed time.Duration) {
	agentRunsTotal.WithLabelValues(strategy, outcome).Inc()
	if turns > 0 {
		agentTurns.Observe(float64(turns))
	}
	agentRunDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveToolCall(tool, status string) {
	toolCallsTotal.WithLabelValues(tool, status).Inc()
}

func IncrementRetrievalFallback() {
	retrievalFallbacksTotal.Inc()
}

func IncrementUpstreamRetry(op string) {
	upstreamRetriesTotal.WithLabelValues(op).Inc()
}
