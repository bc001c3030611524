package ledger

import (
	"errors"
	"fmt"
)

// UpstreamError reports a failed or non-successful call to the ledger API.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("ledger: %s: %v", e.Op, e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("ledger: %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("ledger: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a ledger payload that could not be understood.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ledger: %s: malformed payload: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports missing settings required to reach the ledger.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("ledger: %s is required", e.Setting)
}

// StatusCode extracts the upstream HTTP status from err, or 0 when err is not an UpstreamError.
func StatusCode(err error) int {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode
	}
	return 0
}

// IsConfiguration reports whether err is caused by missing configuration.
func IsConfiguration(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
