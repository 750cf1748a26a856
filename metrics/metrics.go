// Package metrics exposes service counters in Prometheus text format.
// Counters are keyed by outcome class, never by anything derived from
// query content.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/VictoriaMetrics/metrics"
)

var (
	queriesOK      = metrics.NewCounter(`pir_queries_total{outcome="ok"}`)
	evalDuration   = metrics.NewSummary(`pir_evaluation_duration_seconds`)
	generationsPub = metrics.NewCounter(`pir_generations_published_total`)
	tokensRejected = metrics.NewCounter(`pir_tokens_rejected_total`)
)

// QueryOK records a served query.
func QueryOK() { queriesOK.Inc() }

// QueryFailed records a failed query by error code.
func QueryFailed(code string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`pir_queries_total{outcome=%q}`, code)).Inc()
}

// EvalSeconds records the duration of one homomorphic evaluation.
func EvalSeconds(seconds float64) { evalDuration.Update(seconds) }

// GenerationPublished records a generation swap.
func GenerationPublished() { generationsPub.Inc() }

// TokenRejected records a failed token redemption.
func TokenRejected() { tokensRejected.Inc() }

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})
}
