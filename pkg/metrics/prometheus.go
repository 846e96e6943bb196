package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	parsedTotal  *prometheus.CounterVec
	entities     *prometheus.HistogramVec
	toolCalls    *prometheus.CounterVec
	toolLatency  *prometheus.HistogramVec
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

var (
	recorderOnce sync.Once
	recorder     *Recorder
)

// New returns the process-wide recorder; collectors are registered once.
func New() *Recorder {
	recorderOnce.Do(func() {
		recorder = &Recorder{
			parsedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "finchat_parsed_results_total",
				Help: "Tool results parsed, by kind and whether any entity was recognised",
			}, []string{"kind", "structured"}),
			entities: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "finchat_parsed_entities",
				Help:    "Entities extracted per parsed result",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
			}, []string{"kind"}),
			toolCalls: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "finchat_tool_calls_total",
				Help: "Backend tool invocations by outcome",
			}, []string{"tool", "failed"}),
			toolLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "finchat_tool_call_duration_seconds",
				Help:    "Backend tool call latency",
				Buckets: prometheus.DefBuckets,
			}, []string{"tool"}),
			messagesSent: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "finchat_messages_sent_total",
				Help: "Parsed envelopes delivered to a sink",
			}, []string{"sink", "kind"}),
			errorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "finchat_errors_total",
				Help: "Errors encountered, by type",
			}, []string{"type"}),
			latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "finchat_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			}, []string{"operation"}),
		}
	})
	return recorder
}

func (r *Recorder) RecordParse(kind string, structured bool, entities int) {
	r.parsedTotal.WithLabelValues(kind, strconv.FormatBool(structured)).Inc()
	r.entities.WithLabelValues(kind).Observe(float64(entities))
}

func (r *Recorder) RecordToolCall(tool string, failed bool, seconds float64) {
	r.toolCalls.WithLabelValues(tool, strconv.FormatBool(failed)).Inc()
	r.toolLatency.WithLabelValues(tool).Observe(seconds)
}

func (r *Recorder) RecordMessageSent(sink, kind string) {
	r.messagesSent.WithLabelValues(sink, kind).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything. Useful in tests and tools.
type Nop struct{}

func (Nop) RecordParse(string, bool, int)        {}
func (Nop) RecordToolCall(string, bool, float64) {}
func (Nop) RecordMessageSent(string, string)     {}
func (Nop) RecordError(string)                   {}
func (Nop) RecordLatency(string, float64)        {}
