package bearer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andrebq/chainmail/chain"
	"github.com/andrebq/chainmail/guard"
	"github.com/andrebq/chainmail/principal"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	brokenStore struct{}
)

func (brokenStore) Save(context.Context, string, principal.Principal) error { return nil }

func (brokenStore) Lookup(context.Context, string) (principal.Principal, bool, error) {
	return principal.Principal{}, false, errors.New("disk on fire")
}

func TestProtect(t *testing.T) {
	ts, err := InMemoryTokenStore(time.Minute)
	require.NoError(t, err)
	c, err := chain.New(chain.Register[principal.Principal]("bearer", New(ts)))
	require.NoError(t, err)
	g := guard.MustNew(guard.Config[principal.Principal]{
		Chain: c,
		Force: true,
		FailureHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		}),
	})
	var count uint32
	protected := g.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddUint32(&count, 1)
		http.Error(w, guard.CurrentUser[principal.Principal](r).Identity.Subject, http.StatusOK)
	}))
	apitest.Handler(protected).Get("/").Expect(t).Status(http.StatusUnauthorized).End()
	require.NoError(t, ts.Save(context.Background(), "abc123", principal.Principal{Subject: "bob"}))
	apitest.Handler(protected).Get("/").Header("Authorization", "Bearer abc123").Expect(t).Status(http.StatusOK).Body("bob\n").End()
	apitest.Handler(protected).Get("/").Header("Authorization", "Bearer wrong").Expect(t).Status(http.StatusUnauthorized).End()
	if count != 1 {
		t.Fatal("Protected endpoint should have been called only once")
	}
}

func TestApplicable(t *testing.T) {
	s := New(brokenStore{})
	for hdr, expected := range map[string]bool{
		"":                  false,
		"Basic dXNlcjpwdw==": false,
		"Bearer ":           false,
		"Bearer abc":        true,
		"Bearer abc def":    false,
	} {
		req := httptest.NewRequest("GET", "/", nil)
		if hdr != "" {
			req.Header.Set("Authorization", hdr)
		}
		assert.Equal(t, expected, s.Applicable(req), "header %q", hdr)
	}
}

func TestStoreErrorsAreAuthErrors(t *testing.T) {
	s := New(brokenStore{})
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer abc")
	_, err := s.Authenticate(req)
	var authErr chain.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "token store unavailable", authErr.Message)

	_, err = s.Authenticate(httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, chain.ErrNotApplicable, err)
}

func TestFingerprintIsStable(t *testing.T) {
	assert.Equal(t, Fingerprint("abc123"), Fingerprint("abc123"))
	assert.NotEqual(t, Fingerprint("abc123"), Fingerprint("abc124"))
	assert.Len(t, Fingerprint("x"), 16)
	assert.NotContains(t, Fingerprint("abc123"), "abc123")
}

func TestInMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	ts, err := InMemoryTokenStore(time.Minute)
	require.NoError(t, err)
	_, found, err := ts.Lookup(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, ts.Save(ctx, "tk", principal.Principal{Subject: "ana", Roles: []string{"admin"}}))
	p, found, err := ts.Lookup(ctx, "tk")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, p.HasRole("admin"))
}
