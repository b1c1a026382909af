// Package demo wires the bundled strategies behind a small HTTP API used
// by the chainmail command to try configurations out.
package demo

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/andrebq/chainmail/chain"
	"github.com/andrebq/chainmail/guard"
	"github.com/andrebq/chainmail/internal/logutil"
	"github.com/andrebq/chainmail/principal"
	"github.com/andrebq/chainmail/strategies/basic"
	"github.com/andrebq/chainmail/strategies/bearer"
	"github.com/andrebq/chainmail/strategies/luascript"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
)

type (
	Strategies struct {
		Tokens bearer.TokenStore
		Users  *basic.Store
		Script *luascript.Script
		// Order restricts and sorts the strategies above, by name.
		// Empty means bearer, basic, script.
		Order []string
	}

	Options struct {
		Chain     *chain.Chain[principal.Principal]
		Force     bool
		Intercept bool
		Logger    zerolog.Logger
	}
)

const (
	BearerStrategy = "bearer"
	BasicStrategy  = "basic"
	ScriptStrategy = "script"
)

var (
	errNoStrategies = errors.New("demo: enable at least one strategy")
)

func BuildChain(s Strategies) (*chain.Chain[principal.Principal], error) {
	var entries []chain.Named[principal.Principal]
	if s.Tokens != nil {
		entries = append(entries, chain.Register[principal.Principal](BearerStrategy, bearer.New(s.Tokens)))
	}
	if s.Users != nil {
		entries = append(entries, chain.Register[principal.Principal](BasicStrategy, basic.New(s.Users)))
	}
	if s.Script != nil {
		entries = append(entries, chain.Register[principal.Principal](ScriptStrategy, s.Script))
	}
	if len(entries) == 0 {
		return nil, errNoStrategies
	}
	c, err := chain.New(entries...)
	if err != nil {
		return nil, err
	}
	if len(s.Order) == 0 {
		return c, nil
	}
	return c.Subset(s.Order...)
}

// NewGuard returns a guard that answers failures with a JSON
// "authentication_required" document.
func NewGuard(opts Options) (*guard.Guard[principal.Principal], error) {
	return guard.New(guard.Config[principal.Principal]{
		Chain:                 opts.Chain,
		FailureHandler:        http.HandlerFunc(loginRequired),
		Force:                 opts.Force,
		InterceptUnauthorized: opts.Intercept,
	})
}

func Handler(opts Options) (http.Handler, error) {
	g, err := NewGuard(opts)
	if err != nil {
		return nil, err
	}
	router := httprouter.New()
	router.HandlerFunc("GET", "/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handler("GET", "/whoami", g.Wrap(http.HandlerFunc(whoami)))
	router.Handler("GET", "/admin", g.Wrap(http.HandlerFunc(admin)))
	return logutil.Middleware(opts.Logger, router), nil
}

func whoami(w http.ResponseWriter, r *http.Request) {
	user := guard.CurrentUser[principal.Principal](r)
	if user == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"signed_in": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"signed_in":        true,
		"subject":          user.Identity.Subject,
		"name":             user.Identity.DisplayName(),
		"roles":            user.Identity.Roles,
		"authenticated_by": user.AuthenticatedBy,
	})
}

// admin refuses anyone without the admin role, signed in or not
func admin(w http.ResponseWriter, r *http.Request) {
	user := guard.CurrentUser[principal.Principal](r)
	if user == nil || !user.Identity.HasRole("admin") {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "admin role required"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "welcome " + user.Identity.DisplayName()})
}

func loginRequired(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="chainmail"`)
	w.Header().Add("WWW-Authenticate", `Basic realm="chainmail"`)
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error":   "authentication_required",
		"message": "Use a bearer token or basic credentials to access this endpoint",
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
