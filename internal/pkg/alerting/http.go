package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-logr/logr"

	httputil "github.com/encircle/slack-alerter/internal/pkg/http"
)

// maxErrorBody bounds how much of a failed response is kept in a DeliveryError.
const maxErrorBody = 512

// Sender delivers a payload.
type Sender interface {
	Send(ctx context.Context, payload Payload) error
}

// WebhookSender posts payloads to a Slack incoming webhook.
type WebhookSender struct {
	webhookURL string
	client     *http.Client
	log        logr.Logger
}

// NewWebhookSender creates a WebhookSender using client for every request.
func NewWebhookSender(webhookURL string, client *http.Client, log logr.Logger) *WebhookSender {
	return &WebhookSender{
		webhookURL: webhookURL,
		client:     client,
		log:        log,
	}
}

// Send performs exactly one POST. Any transport failure or non-2xx status is
// returned as a *DeliveryError.
func (s *WebhookSender) Send(ctx context.Context, payload Payload) error {
	body, err := encodePayload(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", httputil.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("sending request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &DeliveryError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(snippet)),
		}
	}
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	s.log.Info("Alert sent to Slack", "channel", payload.Channel, "attachments", len(payload.Attachments))
	return nil
}

// LogSender logs payloads instead of posting them.
type LogSender struct {
	log logr.Logger
}

// NewLogSender creates a LogSender writing to log.
func NewLogSender(log logr.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, payload Payload) error {
	body, err := encodePayload(payload)
	if err != nil {
		return err
	}
	s.log.Info("dry run, payload not sent", "channel", payload.Channel, "payload", string(body))
	return nil
}

// encodePayload marshals payload without HTML escaping, so Slack link markup
// such as <url|text> is sent verbatim.
func encodePayload(payload Payload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("marshaling slack payload: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
