package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	AnalysisRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatpulse_analysis_runs_total",
			Help: "Total number of analysis pipeline runs",
		},
		[]string{"status"}, // status: success|error
	)

	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatpulse_analysis_duration_seconds",
			Help:    "Analysis pipeline duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"}, // stage: annotate|events|scoring|extraction|profiles|insights|total
	)

	MessagesProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatpulse_messages_processed_total",
			Help: "Total chat messages annotated",
		},
	)

	EventsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatpulse_market_events_total",
			Help: "Total market events detected",
		},
		[]string{"type"}, // type: spike|drop|divergence
	)

	// LLM metrics
	LLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatpulse_llm_calls_total",
			Help: "Total LLM calls issued",
		},
		[]string{"capability", "status"}, // capability: extraction|profile|narrative
	)

	LLMLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatpulse_llm_latency_seconds",
			Help:    "LLM call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"capability"},
	)

	LLMTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatpulse_llm_tokens_total",
			Help: "Total tokens used by LLM calls",
		},
		[]string{"model", "type"}, // type: input|output
	)

	// Storage metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatpulse_db_queries_total",
			Help: "Total number of storage operations",
		},
		[]string{"database", "operation", "status"}, // database: postgres|clickhouse|redis
	)

	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatpulse_kafka_messages_total",
			Help: "Total Kafka messages produced",
		},
		[]string{"topic", "status"},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(AnalysisRuns)
	prometheus.MustRegister(AnalysisDuration)
	prometheus.MustRegister(MessagesProcessed)
	prometheus.MustRegister(EventsDetected)
	prometheus.MustRegister(LLMCalls)
	prometheus.MustRegister(LLMLatency)
	prometheus.MustRegister(LLMTokens)
	prometheus.MustRegister(DBQueries)
	prometheus.MustRegister(KafkaMessages)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr. Blocks; run in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}

// RecordStage records one pipeline stage duration
func RecordStage(stage string, duration time.Duration) {
	AnalysisDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordLLMCall records one LLM call
func RecordLLMCall(capability string, latency time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	LLMCalls.WithLabelValues(capability, status).Inc()
	LLMLatency.WithLabelValues(capability).Observe(latency.Seconds())
}

// RecordDBQuery records one storage operation
func RecordDBQuery(database, operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DBQueries.WithLabelValues(database, operation, status).Inc()
}
