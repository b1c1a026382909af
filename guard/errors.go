package guard

import (
	"errors"
	"fmt"
)

type (
	// MissingFailureHandler is returned by New when a mode that needs a
	// failure handler is enabled without one.
	MissingFailureHandler struct {
		Mode string
	}
)

var (
	ErrNilChain = errors.New("guard: a strategy chain is required")

	// ErrUnresolved is the panic value used when the resolution slot is
	// read before any guard ran for the request.
	ErrUnresolved = errors.New("guard: identity read before resolution, is the guard installed before this handler?")

	errHijackAfterUnauthorized = errors.New("guard: cannot hijack a connection after answering 401")
)

func (m MissingFailureHandler) Error() string {
	return fmt.Sprintf("guard: %v is enabled but no failure handler was configured", m.Mode)
}
