// Package gateway puts a guard in front of another HTTP service and tells
// it who the caller is through request headers.
package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/andrebq/chainmail/guard"
	"github.com/andrebq/chainmail/principal"
	"github.com/julienschmidt/httprouter"
)

type (
	InvalidUpstream struct {
		URL string
	}
)

const (
	SubjectHeader  = "X-Chainmail-Subject"
	RolesHeader    = "X-Chainmail-Roles"
	StrategyHeader = "X-Chainmail-Strategy"
)

var (
	identityHeaders = []string{SubjectHeader, RolesHeader, StrategyHeader}
)

func (i InvalidUpstream) Error() string {
	return fmt.Sprintf("upstream %q must be an absolute http(s) url", i.URL)
}

// AsHandler proxies every request to upstream after g resolved the caller.
// Identity headers sent by clients are always dropped, upstream only sees
// the ones written here.
func AsHandler(upstream *url.URL, g *guard.Guard[principal.Principal]) (http.Handler, error) {
	if upstream == nil || upstream.Host == "" || (upstream.Scheme != "http" && upstream.Scheme != "https") {
		var raw string
		if upstream != nil {
			raw = upstream.String()
		}
		return nil, InvalidUpstream{URL: raw}
	}
	proxy := httputil.NewSingleHostReverseProxy(upstream)
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		stampIdentity(r)
	}

	router := httprouter.New()
	router.HandlerFunc("GET", "/.chainmail/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	// everything else goes upstream
	router.NotFound = g.Wrap(proxy)
	router.HandleMethodNotAllowed = false
	return router, nil
}

func stampIdentity(r *http.Request) {
	for _, h := range identityHeaders {
		r.Header.Del(h)
	}
	user := guard.CurrentUser[principal.Principal](r)
	if user == nil {
		return
	}
	r.Header.Set(SubjectHeader, user.Identity.Subject)
	r.Header.Set(StrategyHeader, user.AuthenticatedBy)
	if len(user.Identity.Roles) > 0 {
		r.Header.Set(RolesHeader, strings.Join(user.Identity.Roles, ","))
	}
}
