// Package metrics records Generate calls as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Yates-Labs/llmkit/internal/llm"
)

// labels definition
const (
	// result labels
	ResultSuccess = "success"
	ResultFailed  = "failed"

	// reason label for successful calls
	ReasonNone = "none"

	// token kind labels
	TokensPrompt     = "prompt"
	TokensCompletion = "completion"
)

// Recorder implements llm.Recorder on a set of Prometheus collectors.
type Recorder struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	tokens      *prometheus.CounterVec
	generations prometheus.Counter
}

var _ llm.Recorder = (*Recorder)(nil)

// NewRecorder creates the collectors and registers them with reg.
// It panics if they are already registered, like prometheus.MustRegister.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		// number of Generate calls so far
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmkit_generate_requests_total",
				Help: "Total number of Generate calls",
			}, []string{"result", "reason"},
		),

		// Buckets run from 50ms to ~102s, doubling.
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llmkit_generate_duration_seconds",
				Help:    "Duration of Generate calls in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			}, []string{"result"},
		),

		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmkit_tokens_total",
				Help: "Total number of tokens billed by providers",
			}, []string{"kind"},
		),

		generations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "llmkit_generations_total",
				Help: "Total number of generations returned",
			},
		),
	}

	reg.MustRegister(r.requests, r.duration, r.tokens, r.generations)
	return r
}

// ObserveGenerate implements llm.Recorder.
func (r *Recorder) ObserveGenerate(reason string, elapsed time.Duration, usage llm.TokenUsage, generations int) {
	result := ResultSuccess
	if reason != "" {
		result = ResultFailed
	} else {
		reason = ReasonNone
	}

	r.requests.WithLabelValues(result, reason).Inc()
	r.duration.WithLabelValues(result).Observe(elapsed.Seconds())
	r.tokens.WithLabelValues(TokensPrompt).Add(float64(usage.PromptTokens))
	r.tokens.WithLabelValues(TokensCompletion).Add(float64(usage.CompletionTokens))
	r.generations.Add(float64(generations))
}
