package config

import (
	"github.com/spf13/pflag"
)

// flagKeys maps configuration keys, as written in rule files and environment
// variables, to the CLI flag that sets them.
var flagKeys = map[string]string{
	KeyWebhookURL:          "webhook-url",
	KeyChannel:             "channel",
	KeyKibanaBaseURL:       "kibana-base-url",
	KeyIssueTrackerBaseURL: "issuetracker-base-url",
	KeyDisplayName:         "display-name",
	KeyIcon:                "icon",
	KeyMaxAttachments:      "max-attachments",
	KeyProxy:               "proxy",
	KeyTimeout:             "timeout",
	KeyLogFormat:           "log-format",
	KeyLogLevel:            "log-level",
	KeyListenAddr:          "listen-addr",
	KeyMetricsTextfile:     "metrics-textfile",
	KeyDryRun:              "dry-run",
}

// BindFlags binds configuration flags to the provided flag set.
// Call this before parsing flags, then call Load after parsing.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	// Webhook delivery
	fs.StringVar(&cfg.Alerting.WebhookURL, "webhook-url", cfg.Alerting.WebhookURL,
		"Slack incoming-webhook URL to post alerts to")
	fs.StringVar(&cfg.Alerting.Channel, "channel", cfg.Alerting.Channel,
		"Channel to post alerts in")
	fs.StringVar(&cfg.Alerting.Proxy, "proxy", cfg.Alerting.Proxy,
		"Optional HTTP proxy for webhook requests")
	fs.DurationVar(&cfg.Alerting.Timeout, "timeout", cfg.Alerting.Timeout,
		"Timeout for each webhook request")

	// Message formatting
	fs.StringVar(&cfg.Alerting.KibanaBaseURL, "kibana-base-url", cfg.Alerting.KibanaBaseURL,
		"Base URL of the Kibana instance matches link to")
	fs.StringVar(&cfg.Alerting.IssueTrackerBaseURL, "issuetracker-base-url", cfg.Alerting.IssueTrackerBaseURL,
		"Phabricator task-creation URL used for the 'Create task' link")
	fs.StringVar(&cfg.Alerting.DisplayName, "display-name", cfg.Alerting.DisplayName,
		"Username shown on posted messages")
	fs.StringVar(&cfg.Alerting.Icon, "icon", cfg.Alerting.Icon,
		"Emoji shown as the message avatar")
	fs.IntVar(&cfg.Alerting.MaxAttachments, "max-attachments", cfg.Alerting.MaxAttachments,
		"Maximum attachments per message; larger batches are split")

	// Logging
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat,
		"Log format: 'json' or empty for default")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel,
		"Log level: trace, debug, info, warning, error")

	// Serving and output
	fs.StringVar(&cfg.ListenAddr, "listen-addr", cfg.ListenAddr,
		"Address the serve command listens on")
	fs.StringVar(&cfg.MetricsTextfile, "metrics-textfile", cfg.MetricsTextfile,
		"Write metrics in text exposition format to this file after send")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun,
		"Log payloads instead of posting them")
}
