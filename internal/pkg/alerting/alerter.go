package alerting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/go-logr/logr"

	"github.com/encircle/slack-alerter/internal/pkg/config"
	httputil "github.com/encircle/slack-alerter/internal/pkg/http"
	"github.com/encircle/slack-alerter/internal/pkg/match"
	"github.com/encircle/slack-alerter/internal/pkg/metrics"
)

// Alerter is the contract the alerting engine calls once per evaluation cycle.
type Alerter interface {
	Alert(ctx context.Context, matches []match.Record) error
	Info() map[string]string
}

// Dispatcher splits matches into chunks of at most MaxAttachments, formats each
// chunk into a payload and sends it. Chunks are sent one at a time; the first
// failure stops the dispatch and earlier chunks stay delivered.
type Dispatcher struct {
	chunkSize  int
	formatter  *Formatter
	sender     Sender
	httpClient *http.Client
	log        logr.Logger
	metrics    *metrics.Collectors
}

var _ Alerter = (*Dispatcher)(nil)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSender replaces the webhook transport, e.g. with a LogSender for dry runs.
func WithSender(s Sender) Option {
	return func(d *Dispatcher) { d.sender = s }
}

// WithHTTPClient sets the client used by the default webhook sender.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.httpClient = c }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logr.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// WithCollectors enables Prometheus instrumentation.
func WithCollectors(c *metrics.Collectors) Option {
	return func(d *Dispatcher) { d.metrics = c }
}

// New validates cfg and creates a Dispatcher. Missing required options are
// reported as a *ConfigurationError.
func New(cfg config.AlertingConfig, opts ...Option) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	d := &Dispatcher{
		chunkSize: cfg.MaxAttachments,
		formatter: NewFormatter(cfg),
		log:       logr.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.sender == nil {
		if d.httpClient == nil {
			client, err := httputil.NewWebhookClient(cfg)
			if err != nil {
				return nil, &ConfigurationError{Err: err}
			}
			d.httpClient = client
		}
		d.sender = NewWebhookSender(cfg.WebhookURL, d.httpClient, d.log)
	}

	return d, nil
}

// Alert delivers matches, chunk by chunk, in the order given.
func (d *Dispatcher) Alert(ctx context.Context, matches []match.Record) error {
	total := (len(matches) + d.chunkSize - 1) / d.chunkSize
	d.log.V(1).Info("dispatching matches", "matches", len(matches), "messages", total)

	err := d.dispatch(ctx, matches, total)
	d.metrics.RecordDispatch(err == nil, len(matches))
	return err
}

func (d *Dispatcher) dispatch(ctx context.Context, matches []match.Record, total int) error {
	i := 0
	for chunk := range Chunk(matches, d.chunkSize) {
		i++
		if err := ctx.Err(); err != nil {
			d.metrics.RecordError(metrics.ErrorTypeCanceled)
			return fmt.Errorf("dispatch interrupted before message %d of %d: %w", i, total, err)
		}

		payload, err := d.formatter.BuildPayload(chunk)
		if err != nil {
			d.metrics.RecordError(metrics.ErrorTypeFormatting)
			return fmt.Errorf("building message %d of %d: %w", i, total, err)
		}

		start := time.Now()
		err = d.sender.Send(ctx, payload)
		d.metrics.RecordMessage(err == nil, time.Since(start))
		if err != nil {
			var derr *DeliveryError
			switch {
			case ctx.Err() != nil:
				d.metrics.RecordError(metrics.ErrorTypeCanceled)
			case errors.As(err, &derr):
				d.metrics.RecordError(metrics.ErrorTypeDelivery)
			}
			return fmt.Errorf("sending message %d of %d: %w", i, total, err)
		}
		d.log.V(1).Info("message delivered", "message", i, "of", total, "attachments", len(chunk))
	}
	return nil
}

// Info identifies the alerter by its fully-qualified type name.
func (d *Dispatcher) Info() map[string]string {
	t := reflect.TypeOf(Dispatcher{})
	return map[string]string{
		"type": t.PkgPath() + "." + t.Name(),
	}
}
