// Package config provides configuration management for the Slack alerter.
// A Config is assembled once from flags, environment and an optional rule file,
// validated, and treated as immutable afterwards.
package config

import (
	"time"
)

const (
	// DefaultDisplayName is the username shown on posted messages.
	DefaultDisplayName = "elastalert"

	// DefaultIcon is the emoji used as the message avatar.
	DefaultIcon = ":rage:"

	// DefaultMaxAttachments caps attachments per message. Slack rejects more than 100.
	DefaultMaxAttachments = 50

	// DefaultTimeout bounds each webhook POST.
	DefaultTimeout = 10 * time.Second
)

// Config holds all configuration for the alerter.
type Config struct {
	// Alerting holds the webhook delivery and message formatting options.
	Alerting AlertingConfig

	// Logging configuration
	LogFormat string // "json" or "" for console output
	LogLevel  string // trace, debug, info, warning, error

	// ListenAddr is the address the serve command accepts match batches on.
	ListenAddr string

	// MetricsTextfile, when set, receives the collected metrics in text
	// exposition format after a one-shot send.
	MetricsTextfile string

	// DryRun logs payloads instead of posting them.
	DryRun bool
}

// AlertingConfig holds the options consumed by the dispatcher.
type AlertingConfig struct {
	// WebhookURL is the incoming-webhook endpoint messages are posted to.
	WebhookURL string

	// Channel is the target channel, e.g. "#alerts".
	Channel string

	// KibanaBaseURL is the dashboard UI each match links to.
	KibanaBaseURL string

	// IssueTrackerBaseURL is the Phabricator task-creation URL.
	IssueTrackerBaseURL string

	// DisplayName overrides the posting username.
	DisplayName string

	// Icon overrides the posting avatar emoji.
	Icon string

	// MaxAttachments is the chunk size used when splitting matches into messages.
	MaxAttachments int

	// Proxy is an optional HTTP proxy for webhook requests.
	Proxy string

	// Timeout bounds each webhook request.
	Timeout time.Duration
}

// NewDefault creates a Config with default values.
func NewDefault() *Config {
	return &Config{
		Alerting:        DefaultAlerting(),
		LogFormat:       "",
		LogLevel:        "info",
		ListenAddr:      ":8080",
		MetricsTextfile: "",
		DryRun:          false,
	}
}

// DefaultAlerting returns an AlertingConfig with only the optional fields populated.
func DefaultAlerting() AlertingConfig {
	return AlertingConfig{
		DisplayName:    DefaultDisplayName,
		Icon:           DefaultIcon,
		MaxAttachments: DefaultMaxAttachments,
		Timeout:        DefaultTimeout,
	}
}
