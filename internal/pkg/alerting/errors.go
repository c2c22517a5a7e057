package alerting

import (
	"errors"
	"fmt"
)

// ErrMissingKey reports a match record lacking a key the formatter requires.
var ErrMissingKey = errors.New("required key is absent")

// ConfigurationError is returned by New when required options are missing or invalid.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid alerter configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// FormattingError is returned when a match record cannot be turned into an attachment.
type FormattingError struct {
	// Key is the record key that could not be used.
	Key string
	Err error
}

func (e *FormattingError) Error() string {
	return fmt.Sprintf("formatting match: %s: %v", e.Key, e.Err)
}

func (e *FormattingError) Unwrap() error { return e.Err }

// DeliveryError is returned when the webhook POST fails or is answered with a non-2xx status.
type DeliveryError struct {
	// StatusCode is zero for network-level failures.
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("error posting to slack: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
