// Package basic authenticates HTTP basic credentials against a SQLite
// user database.
package basic

import (
	"errors"
	"net/http"

	"github.com/andrebq/chainmail/chain"
	"github.com/andrebq/chainmail/internal/logutil"
	"github.com/andrebq/chainmail/principal"
)

type (
	Strategy struct {
		users *Store
	}
)

var _ chain.Strategy[principal.Principal] = (*Strategy)(nil)

func New(users *Store) *Strategy {
	return &Strategy{users: users}
}

func (s *Strategy) Applicable(r *http.Request) bool {
	_, _, ok := r.BasicAuth()
	return ok
}

func (s *Strategy) Authenticate(r *http.Request) (principal.Principal, error) {
	login, passwd, ok := r.BasicAuth()
	if !ok {
		return principal.Principal{}, chain.ErrNotApplicable
	}
	plain := PlainText(passwd)
	defer plain.Zero()
	p, err := s.users.Verify(r.Context(), login, plain)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return principal.Principal{}, chain.Fail("invalid username or password")
	case err != nil:
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Str("login", login).Msg("Unable to verify credentials")
		return principal.Principal{}, chain.Fail("user database unavailable")
	}
	return p, nil
}
