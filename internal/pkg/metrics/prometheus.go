package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Error types recorded in the errors_total counter.
const (
	ErrorTypeFormatting = "formatting"
	ErrorTypeDelivery   = "delivery"
	ErrorTypeCanceled   = "canceled"
)

// Collectors holds the dispatcher's Prometheus metrics. A nil *Collectors records nothing.
type Collectors struct {
	Dispatches *prometheus.CounterVec
	Messages   *prometheus.CounterVec
	Matches    prometheus.Counter
	Errors     *prometheus.CounterVec
	Latency    prometheus.Histogram
}

// NewCollectors creates unregistered collectors with the success counters pre-set to zero.
func NewCollectors() Collectors {
	dispatches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slack_alerter",
			Name:      "dispatch_total",
			Help:      "Counter of match batches dispatched.",
		},
		[]string{
			"success",
		},
	)

	//set 0 as default value
	dispatches.With(prometheus.Labels{"success": "true"}).Add(0)
	dispatches.With(prometheus.Labels{"success": "false"}).Add(0)

	messages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slack_alerter",
			Name:      "messages_total",
			Help:      "Counter of webhook messages posted, one per chunk of matches.",
		},
		[]string{
			"success",
		},
	)

	messages.With(prometheus.Labels{"success": "true"}).Add(0)
	messages.With(prometheus.Labels{"success": "false"}).Add(0)

	matches := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slack_alerter",
			Name:      "matches_total",
			Help:      "Counter of match records received for dispatch.",
		},
	)

	errors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slack_alerter",
			Name:      "errors_total",
			Help:      "Counter of errors encountered while dispatching.",
		},
		[]string{
			"error_type",
		},
	)

	latency := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "slack_alerter",
			Name:      "webhook_request_duration_seconds",
			Help:      "Duration of webhook POST requests.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	return Collectors{
		Dispatches: dispatches,
		Messages:   messages,
		Matches:    matches,
		Errors:     errors,
		Latency:    latency,
	}
}

// Register adds every collector to reg.
func (c *Collectors) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{c.Dispatches, c.Messages, c.Matches, c.Errors, c.Latency} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// SetupPrometheusEndpoint registers fresh collectors with a new registry and
// mounts /metrics on mux. The registry is returned for textfile export.
func SetupPrometheusEndpoint(mux *http.ServeMux) (Collectors, *prometheus.Registry) {
	collectors := NewCollectors()
	reg := prometheus.NewRegistry()
	// fresh registry, cannot collide
	_ = collectors.Register(reg)

	if mux != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}

	return collectors, reg
}

// WriteTextfile dumps the registry in text exposition format, for pickup by the
// node exporter textfile collector after a one-shot run.
func WriteTextfile(path string, reg *prometheus.Registry) error {
	return prometheus.WriteToTextfile(path, reg)
}

// RecordDispatch counts one Alert call and the matches it carried.
func (c *Collectors) RecordDispatch(success bool, matches int) {
	if c == nil {
		return
	}
	c.Dispatches.With(prometheus.Labels{"success": boolLabel(success)}).Inc()
	c.Matches.Add(float64(matches))
}

// RecordMessage counts one webhook POST and observes its duration.
func (c *Collectors) RecordMessage(success bool, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Messages.With(prometheus.Labels{"success": boolLabel(success)}).Inc()
	c.Latency.Observe(elapsed.Seconds())
}

// RecordError counts an error of the given type.
func (c *Collectors) RecordError(errorType string) {
	if c == nil {
		return
	}
	c.Errors.With(prometheus.Labels{"error_type": errorType}).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
