package chain

import (
	"net/http"
	"reflect"
	"sort"

	"github.com/andrebq/chainmail/internal/logutil"
)

type (
	// Chain holds a fixed set of named strategies. It is never modified
	// after New returns, so a single value can serve every request.
	Chain[T any] struct {
		order      []string
		strategies map[string]Strategy[T]
	}

	Attempt struct {
		Strategy string
		Err      error
	}

	// Outcome is what Trace returns: the winner, if any, plus every failed
	// attempt that happened before it, in the order they were tried.
	Outcome[T any] struct {
		User     *AuthedUser[T]
		Attempts []Attempt
	}
)

// New returns a chain that tries strategies in the order they are given.
func New[T any](entries ...Named[T]) (*Chain[T], error) {
	if len(entries) == 0 {
		return nil, errEmptyChain
	}
	c := &Chain[T]{
		order:      make([]string, 0, len(entries)),
		strategies: make(map[string]Strategy[T], len(entries)),
	}
	for _, e := range entries {
		switch {
		case e.Name == "":
			return nil, InvalidRegistration{Name: e.Name, Reason: "name cannot be empty"}
		case isNil(e.Strategy):
			return nil, InvalidRegistration{Name: e.Name, Reason: "strategy cannot be nil"}
		case c.strategies[e.Name] != nil:
			return nil, InvalidRegistration{Name: e.Name, Reason: "name already in use"}
		}
		c.order = append(c.order, e.Name)
		c.strategies[e.Name] = e.Strategy
	}
	return c, nil
}

// FromMap builds a chain whose default order is the sorted list of names
func FromMap[T any](strategies map[string]Strategy[T]) (*Chain[T], error) {
	names := make([]string, 0, len(strategies))
	for k := range strategies {
		names = append(names, k)
	}
	sort.Strings(names)
	entries := make([]Named[T], 0, len(names))
	for _, n := range names {
		entries = append(entries, Register(n, strategies[n]))
	}
	return New(entries...)
}

func (c *Chain[T]) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Subset returns a new chain restricted to names, in the given order.
// Unlike ResolveWith it reports unknown names as an error, which makes it
// the right tool to validate call-site subsets during startup.
func (c *Chain[T]) Subset(names ...string) (*Chain[T], error) {
	entries := make([]Named[T], 0, len(names))
	for _, n := range names {
		s, ok := c.strategies[n]
		if !ok {
			return nil, UnknownStrategy{Name: n}
		}
		entries = append(entries, Register(n, s))
	}
	return New(entries...)
}

func (c *Chain[T]) MustSubset(names ...string) *Chain[T] {
	sub, err := c.Subset(names...)
	if err != nil {
		panic(err)
	}
	return sub
}

// Resolve tries every registered strategy, in registration order, and
// returns the first success. Failures are not reported.
func (c *Chain[T]) Resolve(r *http.Request) (*AuthedUser[T], bool) {
	out := c.run(r, c.order, false)
	return out.User, out.User != nil
}

// ResolveWith is like Resolve but only considers names, in that order.
// Asking for a strategy that was never registered is a programming error
// and causes a panic with UnknownStrategy.
func (c *Chain[T]) ResolveWith(r *http.Request, names ...string) (*AuthedUser[T], bool) {
	c.mustKnow(names)
	out := c.run(r, names, false)
	return out.User, out.User != nil
}

// Trace behaves like ResolveWith (or Resolve when names is empty) but
// keeps every failed attempt.
func (c *Chain[T]) Trace(r *http.Request, names ...string) Outcome[T] {
	if len(names) == 0 {
		return c.run(r, c.order, true)
	}
	c.mustKnow(names)
	return c.run(r, names, true)
}

func (c *Chain[T]) mustKnow(names []string) {
	for _, n := range names {
		if _, ok := c.strategies[n]; !ok {
			panic(UnknownStrategy{Name: n})
		}
	}
}

func (c *Chain[T]) run(r *http.Request, names []string, keep bool) Outcome[T] {
	log := logutil.GetOrDefault(r.Context())
	var out Outcome[T]
	for _, name := range names {
		st := c.strategies[name]
		var id T
		var err error
		if st.Applicable(r) {
			id, err = st.Authenticate(r)
		} else {
			err = ErrNotApplicable
		}
		if err != nil {
			log.Debug().Str("strategy", name).Err(err).Msg("Strategy did not authenticate request")
			if keep {
				out.Attempts = append(out.Attempts, Attempt{Strategy: name, Err: err})
			}
			continue
		}
		out.User = &AuthedUser[T]{Identity: id, AuthenticatedBy: name}
		return out
	}
	return out
}

// isNil also catches typed nils, like a nil *Script stored in the interface
func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
