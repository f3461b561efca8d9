// Package engines holds shared types for the external engine clients.
//
// The console does not run ETL, CDC, scheduling, or metadata workloads
// itself. Each of those engines exposes a REST API, and the subpackages here
// wrap them in typed clients. Upstream failures are reported as *Error so
// HTTP handlers can map them to a 502 without retrying.
package engines

import (
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single engine request.
const DefaultTimeout = 30 * time.Second

// Config holds connection settings shared by all engine clients.
type Config struct {
	// BaseURL is the engine's API root, without a trailing slash.
	BaseURL string
	// Token is an optional bearer token sent on every request.
	Token string
	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Error represents a non-2xx response from an engine.
type Error struct {
	Engine     string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s engine returned status %d: %s", e.Engine, e.StatusCode, e.Body)
}

// IsUpstream reports whether err is an engine response error,
// as opposed to a transport or decoding failure.
func IsUpstream(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
