package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrMissingCredentials  = errors.New("no API credentials")
	ErrUpstreamUnavailable = errors.New("panel unavailable")
	ErrUpstreamRejected    = errors.New("panel rejected request")
	ErrSessionExpired      = errors.New("console session expired")
	ErrProtocolViolation   = errors.New("malformed frame from panel")
	ErrInvalidSignal       = errors.New("invalid power signal")
)

// UpstreamError is a client-facing error returned by the panel. Status and
// Detail are kept exactly as the panel sent them.
type UpstreamError struct {
	Status int
	Code   string
	Detail string
}

func (e *UpstreamError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%d", e.Status)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Detail)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamRejected
}
