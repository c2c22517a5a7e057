package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load,
// e.g. SLACK_ALERTER_WEBHOOK_URL.
const EnvPrefix = "SLACK_ALERTER"

// Configuration keys as they appear in rule files.
const (
	KeyWebhookURL          = "webhook_url"
	KeyChannel             = "channel"
	KeyKibanaBaseURL       = "kibana_base_url"
	KeyIssueTrackerBaseURL = "issuetracker_base_url"
	KeyDisplayName         = "display_name"
	KeyIcon                = "icon"
	KeyMaxAttachments      = "max_attachments"
	KeyProxy               = "proxy"
	KeyTimeout             = "timeout"
	KeyLogFormat           = "log_format"
	KeyLogLevel            = "log_level"
	KeyListenAddr          = "listen_addr"
	KeyMetricsTextfile     = "metrics_textfile"
	KeyDryRun              = "dry_run"
)

// legacyKeys maps the option names used by existing ElastAlert rule files onto
// the current keys, so those rule files can be passed to --config unchanged.
var legacyKeys = map[string]string{
	"encircle_slack_webhook":     KeyWebhookURL,
	"encircle_slack_channel":     KeyChannel,
	"encircle_slack_kibana":      KeyKibanaBaseURL,
	"encircle_slack_phabricator": KeyIssueTrackerBaseURL,
	"encircle_slack_username":    KeyDisplayName,
	"encircle_slack_emoji":       KeyIcon,
}

// Load resolves the configuration from, in order of precedence, changed flags,
// SLACK_ALERTER_* environment variables, the optional config file and flag defaults.
// The returned Config has been validated.
func Load(v *viper.Viper, fs *pflag.FlagSet, configFile string) (*Config, error) {
	for key, name := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("binding flag %s: %w", name, err)
		}
	}

	defaults := NewDefault()
	v.SetDefault(KeyDisplayName, defaults.Alerting.DisplayName)
	v.SetDefault(KeyIcon, defaults.Alerting.Icon)
	v.SetDefault(KeyMaxAttachments, defaults.Alerting.MaxAttachments)
	v.SetDefault(KeyTimeout, defaults.Alerting.Timeout)
	v.SetDefault(KeyLogLevel, defaults.LogLevel)
	v.SetDefault(KeyListenAddr, defaults.ListenAddr)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	for legacy, key := range legacyKeys {
		if v.InConfig(legacy) && !v.InConfig(key) {
			v.SetDefault(key, v.Get(legacy))
		}
	}

	cfg := &Config{
		Alerting: AlertingConfig{
			WebhookURL:          v.GetString(KeyWebhookURL),
			Channel:             v.GetString(KeyChannel),
			KibanaBaseURL:       v.GetString(KeyKibanaBaseURL),
			IssueTrackerBaseURL: v.GetString(KeyIssueTrackerBaseURL),
			DisplayName:         v.GetString(KeyDisplayName),
			Icon:                v.GetString(KeyIcon),
			MaxAttachments:      v.GetInt(KeyMaxAttachments),
			Proxy:               v.GetString(KeyProxy),
			Timeout:             v.GetDuration(KeyTimeout),
		},
		LogFormat:       v.GetString(KeyLogFormat),
		LogLevel:        v.GetString(KeyLogLevel),
		ListenAddr:      v.GetString(KeyListenAddr),
		MetricsTextfile: v.GetString(KeyMetricsTextfile),
		DryRun:          v.GetBool(KeyDryRun),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
