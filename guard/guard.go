// Package guard binds a strategy chain to net/http.
//
// A Guard resolves the caller once per request and publishes the result in
// the request context, where handlers read it with CurrentUser and
// IsSignedIn. Two independent switches change what happens around the
// wrapped handler:
//
//   - Force: requests without an identity never reach the handler, the
//     failure handler answers them instead.
//   - InterceptUnauthorized: a 401 produced by the handler is discarded and
//     the failure handler answers instead.
//
// With both switches off the guard only annotates requests.
package guard

import (
	"net/http"

	"github.com/andrebq/chainmail/chain"
	"github.com/andrebq/chainmail/internal/logutil"
)

type (
	Config[T any] struct {
		Chain                 *chain.Chain[T]
		FailureHandler        http.Handler
		Force                 bool
		InterceptUnauthorized bool
	}

	Guard[T any] struct {
		chain     *chain.Chain[T]
		failure   http.Handler
		force     bool
		intercept bool
	}
)

// New validates cfg and returns a guard ready to wrap handlers.
func New[T any](cfg Config[T]) (*Guard[T], error) {
	if cfg.Chain == nil {
		return nil, ErrNilChain
	}
	if cfg.FailureHandler == nil {
		if cfg.Force {
			return nil, MissingFailureHandler{Mode: "force"}
		}
		if cfg.InterceptUnauthorized {
			return nil, MissingFailureHandler{Mode: "intercept-unauthorized"}
		}
	}
	return &Guard[T]{
		chain:     cfg.Chain,
		failure:   cfg.FailureHandler,
		force:     cfg.Force,
		intercept: cfg.InterceptUnauthorized,
	}, nil
}

func MustNew[T any](cfg Config[T]) *Guard[T] {
	g, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return g
}

// Middleware returns Wrap as a plain middleware function.
func (g *Guard[T]) Middleware() func(http.Handler) http.Handler {
	return g.Wrap
}

// Hook only resolves and publishes the identity, next is always called.
// Use it when something further down the pipeline decides what to do with
// anonymous callers.
func (g *Guard[T]) Hook(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, _ = g.resolve(r)
		next.ServeHTTP(w, r)
	})
}

func (g *Guard[T]) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, signedIn := g.resolve(r)
		log := logutil.GetOrDefault(r.Context())
		if !signedIn && g.force {
			log.Info().Msg("Blocking anonymous request")
			g.failure.ServeHTTP(w, r)
			return
		}
		if !g.intercept {
			next.ServeHTTP(w, r)
			return
		}
		iw := newInterceptWriter(w)
		next.ServeHTTP(iw, r)
		if iw.dropped {
			log.Info().Msg("Replacing unauthorized response with failure handler")
			g.failure.ServeHTTP(w, r)
			return
		}
		iw.finish()
	})
}

func (g *Guard[T]) resolve(r *http.Request) (*http.Request, bool) {
	user, ok := g.chain.Resolve(r)
	log := logutil.GetOrDefault(r.Context())
	if ok {
		log.Debug().Str("strategy", user.AuthenticatedBy).Msg("Request authenticated")
	} else {
		log.Debug().Msg("No strategy authenticated request")
	}
	return r.WithContext(WithResolution(r.Context(), g.chain, user)), ok
}
