package chain

import (
	"errors"
	"fmt"
)

type (
	// AuthError is returned by a strategy that tried, and failed, to
	// authenticate the caller. The chain never lets it escape Resolve.
	AuthError struct {
		Message string
	}

	// UnknownStrategy is raised when a caller asks for a strategy name
	// that was never registered in the chain.
	UnknownStrategy struct {
		Name string
	}

	InvalidRegistration struct {
		Name   string
		Reason string
	}
)

var (
	// ErrNotApplicable is used when a strategy does not apply to a request.
	ErrNotApplicable = AuthError{Message: "strategy not applicable"}

	errEmptyChain = errors.New("chain: at least one strategy must be registered")
)

// Fail builds an AuthError using fmt.Sprintf semantics
func Fail(format string, args ...interface{}) error {
	return AuthError{Message: fmt.Sprintf(format, args...)}
}

func (a AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", a.Message)
}

func (u UnknownStrategy) Error() string {
	return fmt.Sprintf("chain: no such strategy: %v", u.Name)
}

func (i InvalidRegistration) Error() string {
	return fmt.Sprintf("chain: cannot register strategy %q, %v", i.Name, i.Reason)
}
