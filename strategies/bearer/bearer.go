// Package bearer authenticates requests carrying an
// `Authorization: Bearer <token>` header against a TokenStore.
package bearer

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/andrebq/chainmail/chain"
	"github.com/andrebq/chainmail/internal/logutil"
	"github.com/andrebq/chainmail/principal"
	"github.com/cespare/xxhash/v2"
)

type (
	Strategy struct {
		tokens TokenStore
	}
)

var (
	bearerTokenRE = regexp.MustCompile(`^Bearer ([^\s]+)$`)

	_ chain.Strategy[principal.Principal] = (*Strategy)(nil)
)

func New(tokens TokenStore) *Strategy {
	return &Strategy{tokens: tokens}
}

func (s *Strategy) Applicable(r *http.Request) bool {
	_, ok := extractToken(r)
	return ok
}

func (s *Strategy) Authenticate(r *http.Request) (principal.Principal, error) {
	ctx := r.Context()
	tk, ok := extractToken(r)
	if !ok {
		return principal.Principal{}, chain.ErrNotApplicable
	}
	log := logutil.GetOrDefault(ctx).With().Str("token.fingerprint", Fingerprint(tk)).Logger()
	p, found, err := s.tokens.Lookup(ctx, tk)
	if err != nil {
		log.Error().Err(err).Msg("Unexpected error when checking for token in token store")
		return principal.Principal{}, chain.Fail("token store unavailable")
	}
	if !found {
		return principal.Principal{}, chain.Fail("unknown bearer token")
	}
	return p, nil
}

// Fingerprint identifies a token in logs without revealing it
func Fingerprint(token string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(token))
}

func extractToken(r *http.Request) (string, bool) {
	groups := bearerTokenRE.FindStringSubmatch(r.Header.Get("Authorization"))
	if len(groups) == 0 {
		return "", false
	}
	return groups[1], true
}
