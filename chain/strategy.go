// Package chain tries named authentication strategies in order and keeps
// the first one that recognises the caller.
//
// A strategy that fails only means "try the next one": the chain never
// reports why a strategy failed (use Trace for that) and a request nobody
// recognises simply resolves to no identity.
package chain

import "net/http"

type (
	// Strategy is a single way of telling who the caller is.
	//
	// Applicable must not mutate or consume the request. Authenticate might
	// be called without a previous call to Applicable, so implementations
	// should return an AuthError (or ErrNotApplicable) when the request
	// does not carry the credentials they understand.
	Strategy[T any] interface {
		Applicable(r *http.Request) bool
		Authenticate(r *http.Request) (T, error)
	}

	// Func is a Strategy that is always applicable
	Func[T any] func(r *http.Request) (T, error)

	Named[T any] struct {
		Name     string
		Strategy Strategy[T]
	}

	// AuthedUser is the outcome of a successful resolution.
	AuthedUser[T any] struct {
		Identity        T
		AuthenticatedBy string
	}
)

func (f Func[T]) Applicable(*http.Request) bool { return true }

func (f Func[T]) Authenticate(r *http.Request) (T, error) { return f(r) }

func Register[T any](name string, s Strategy[T]) Named[T] {
	return Named[T]{Name: name, Strategy: s}
}
