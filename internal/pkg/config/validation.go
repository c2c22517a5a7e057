package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config.%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var b strings.Builder
	b.WriteString("multiple configuration errors:\n")
	for _, err := range e {
		b.WriteString("  - ")
		b.WriteString(err.Error())
		b.WriteString("\n")
	}
	return b.String()
}

// Validate checks the configuration for errors and normalizes values.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if err := c.Alerting.Validate(); err != nil {
		for _, e := range err.(ValidationErrors) {
			e.Field = "Alerting." + e.Field
			errs = append(errs, e)
		}
	}

	// Validate LogLevel
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "warning", "error", "":
		// valid
	default:
		errs = append(
			errs, ValidationError{
				Field:   "LogLevel",
				Message: fmt.Sprintf("invalid log level %q", c.LogLevel),
			},
		)
	}

	// Validate LogFormat
	switch strings.ToLower(c.LogFormat) {
	case "json", "":
		// valid
	default:
		errs = append(
			errs, ValidationError{
				Field:   "LogFormat",
				Message: fmt.Sprintf("invalid log format %q, must be \"json\" or empty", c.LogFormat),
			},
		)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Validate checks that every required option is present and fills in defaults
// for the optional ones. The returned error, if any, is ValidationErrors.
func (a *AlertingConfig) Validate() error {
	var errs ValidationErrors

	a.WebhookURL = strings.TrimSpace(a.WebhookURL)
	a.Channel = strings.TrimSpace(a.Channel)
	a.KibanaBaseURL = strings.TrimSpace(a.KibanaBaseURL)
	a.IssueTrackerBaseURL = strings.TrimSpace(a.IssueTrackerBaseURL)

	required := []struct {
		field string
		value string
	}{
		{"WebhookURL", a.WebhookURL},
		{"Channel", a.Channel},
		{"KibanaBaseURL", a.KibanaBaseURL},
		{"IssueTrackerBaseURL", a.IssueTrackerBaseURL},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, ValidationError{Field: r.field, Message: "required option is missing"})
		}
	}

	if a.DisplayName == "" {
		a.DisplayName = DefaultDisplayName
	}
	if a.Icon == "" {
		a.Icon = DefaultIcon
	}

	switch {
	case a.MaxAttachments == 0:
		a.MaxAttachments = DefaultMaxAttachments
	case a.MaxAttachments < 0:
		errs = append(errs, ValidationError{
			Field:   "MaxAttachments",
			Message: fmt.Sprintf("must be positive, got %d", a.MaxAttachments),
		})
	}

	if a.Timeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "Timeout",
			Message: fmt.Sprintf("must not be negative, got %s", a.Timeout),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
