package telerelay

import (
	"errors"
	"fmt"
)

// Configuration errors
var (
	ErrMissingAPIID       = errors.New("telerelay: api_id is required")
	ErrMissingAPIHash     = errors.New("telerelay: api_hash is required")
	ErrMissingChatID      = errors.New("telerelay: mapping source and destination are required")
	ErrInvalidThreshold   = errors.New("telerelay: number_threshold_min is greater than number_threshold_max")
	ErrInvalidSessionName = errors.New("telerelay: invalid session name")
	ErrInvalidChatID      = errors.New("telerelay: invalid chat identifier")
)

// Runtime errors
var (
	ErrNotAuthorized     = errors.New("telerelay: session is not authorized, create it with `telerelay session create`")
	ErrNotConnected      = errors.New("telerelay: client is not connected")
	ErrAlreadyRunning    = errors.New("telerelay: account is already running")
	ErrUnknownPeer       = errors.New("telerelay: peer is not known to this account")
	ErrNoSessionsStarted = errors.New("telerelay: no session could be started")
	ErrFleetStopped      = errors.New("telerelay: fleet is stopped")
)

// ConfigError reports a configuration file that could not be read, parsed or
// validated.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ConnectionError reports an account whose client failed to authenticate or
// connect. Other accounts are unaffected.
type ConnectionError struct {
	Session string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("session %s: connect: %v", e.Session, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// FilterError reports a number pattern that could not be compiled or whose
// capture could not be converted. It is logged, never returned to callers of
// ShouldForward.
type FilterError struct {
	Pattern string
	Err     error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("number pattern %q: %v", e.Pattern, e.Err)
}

func (e *FilterError) Unwrap() error { return e.Err }

// DeliveryError reports a message that could not be delivered after the
// fallback attempt.
type DeliveryError struct {
	Destination string
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.Destination, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// ReloadError reports a failed fleet reload. Fallback is true when the
// previous configuration was restored.
type ReloadError struct {
	Fallback bool
	Err      error
}

func (e *ReloadError) Error() string {
	if e.Fallback {
		return fmt.Sprintf("reload failed, previous configuration restored: %v", e.Err)
	}
	return fmt.Sprintf("reload failed: %v", e.Err)
}

func (e *ReloadError) Unwrap() error { return e.Err }
