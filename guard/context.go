package guard

import (
	"context"
	"net/http"

	"github.com/andrebq/chainmail/chain"
)

type (
	// Slot is the per-request result of a resolution. It is written once
	// by the guard and only read afterwards.
	Slot[T any] struct {
		User  *chain.AuthedUser[T]
		chain *chain.Chain[T]
	}

	// one key type per identity type, so different guards never collide
	slotKey[T any] struct{}
)

// WithResolution publishes user (nil means no identity) in the returned
// context. c is optional and only needed by ResolveAgain.
func WithResolution[T any](ctx context.Context, c *chain.Chain[T], user *chain.AuthedUser[T]) context.Context {
	return context.WithValue(ctx, slotKey[T]{}, &Slot[T]{User: user, chain: c})
}

func Resolved[T any](ctx context.Context) (*Slot[T], bool) {
	s, ok := ctx.Value(slotKey[T]{}).(*Slot[T])
	return s, ok
}

// CurrentUser returns the identity resolved for r, or nil when no strategy
// succeeded. It panics with ErrUnresolved if no guard processed r.
func CurrentUser[T any](r *http.Request) *chain.AuthedUser[T] {
	s, ok := Resolved[T](r.Context())
	if !ok {
		panic(ErrUnresolved)
	}
	return s.User
}

func IsSignedIn[T any](r *http.Request) bool {
	return CurrentUser[T](r) != nil
}

// ResolveAgain runs the chain that served r once more, restricted to names
// in the given order. The stored resolution is left untouched.
func ResolveAgain[T any](r *http.Request, names ...string) (*chain.AuthedUser[T], bool) {
	s, ok := Resolved[T](r.Context())
	if !ok || s.chain == nil {
		panic(ErrUnresolved)
	}
	if len(names) == 0 {
		return s.chain.Resolve(r)
	}
	return s.chain.ResolveWith(r, names...)
}
