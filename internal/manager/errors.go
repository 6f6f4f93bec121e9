package manager

import (
	"errors"

	"clipforge/internal/eventlog"
)

// ErrSessionNotFound is returned when a session id does not resolve for the
// requesting user on any configured backend.
var ErrSessionNotFound = eventlog.ErrNotFound

// ErrInvalidRequest wraps request validation failures surfaced at creation.
var ErrInvalidRequest = errors.New("invalid session request")

// ErrManagerClosed is returned for operations after Close.
var ErrManagerClosed = errors.New("session manager closed")
