package domain

import (
	"errors"
	"fmt"
)

// ErrNoRollingFrames signals that a rolling correlation pass produced no
// qualifying windows. It is a degradation signal, not a fatal error: the
// pipeline retries over full history and then falls back to a single
// static frame.
var ErrNoRollingFrames = errors.New("no qualifying rolling correlation windows")

// ConfigError reports malformed or missing configuration. It is fatal and
// aborts the run before any fetch or compute.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// NotFoundError reports that no persisted raw data exists for a configured
// series. Callers skip the series with a warning and continue.
type NotFoundError struct {
	Series string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no raw data found for series %q", e.Series)
}

// InsufficientDataError reports that fewer qualifying series or rows than
// the configured minimum survived alignment. Fatal: no partial output.
type InsufficientDataError struct {
	Subject string
	Have    int
	Need    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s: have %d, need >= %d", e.Subject, e.Have, e.Need)
}
