// Package http builds the pooled HTTP client used for webhook delivery.
package http

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/encircle/slack-alerter/internal/pkg/config"
)

const (
	// DefaultTimeout bounds a webhook POST when the alerting options leave it unset.
	DefaultTimeout = config.DefaultTimeout

	// UserAgent identifies the alerter to webhook receivers.
	UserAgent = "slack-alerter"
)

// ClientConfig describes the client a webhook sender posts through.
type ClientConfig struct {
	// Timeout caps each POST, including reading the response.
	Timeout time.Duration

	// ProxyURL routes webhook traffic through a proxy. Empty means the
	// HTTP_PROXY/HTTPS_PROXY environment applies.
	ProxyURL string

	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// DefaultConfig returns the pool settings used for webhook delivery. A single
// alerter talks to one webhook host, so the per-host pool stays small.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		Timeout:             DefaultTimeout,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}
}

// WebhookConfig derives the client settings from the alerting options: the
// proxy is taken as-is and a positive timeout replaces the default.
func WebhookConfig(a config.AlertingConfig) ClientConfig {
	cfg := DefaultConfig()
	cfg.ProxyURL = a.Proxy
	if a.Timeout > 0 {
		cfg.Timeout = a.Timeout
	}
	return cfg
}

// NewClient creates the webhook client. An unparsable proxy URL is an error.
func NewClient(cfg ClientConfig) (*http.Client, error) {
	proxy := http.ProxyFromEnvironment
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parsing proxy URL %q: %w", cfg.ProxyURL, err)
		}
		proxy = http.ProxyURL(proxyURL)
	}

	return &http.Client{
		Transport: &http.Transport{
			Proxy:               proxy,
			MaxIdleConns:        cfg.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:     cfg.IdleConnTimeout,
		},
		Timeout: cfg.Timeout,
	}, nil
}

// NewWebhookClient is NewClient(WebhookConfig(a)).
func NewWebhookClient(a config.AlertingConfig) (*http.Client, error) {
	return NewClient(WebhookConfig(a))
}
