package gateway

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/andrebq/chainmail/chain"
	"github.com/andrebq/chainmail/guard"
	"github.com/andrebq/chainmail/principal"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T, force, intercept bool) *guard.Guard[principal.Principal] {
	strategy := chain.Func[principal.Principal](func(r *http.Request) (principal.Principal, error) {
		if r.Header.Get("Authorization") != "Bearer good" {
			return principal.Principal{}, chain.Fail("bad token")
		}
		return principal.Principal{Subject: "bob", Roles: []string{"ops", "dev"}}, nil
	})
	c, err := chain.New(chain.Register[principal.Principal]("static", strategy))
	require.NoError(t, err)
	return guard.MustNew(guard.Config[principal.Principal]{
		Chain:                 c,
		Force:                 force,
		InterceptUnauthorized: intercept,
		FailureHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "login first", http.StatusUnauthorized)
		}),
	})
}

func TestForwardsIdentity(t *testing.T) {
	var seen http.Header
	var upstreamCount int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCount++
		seen = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()
	upstreamURL, _ := url.Parse(upstream.URL)

	handler, err := AsHandler(upstreamURL, newGuard(t, false, false))
	require.NoError(t, err)

	apitest.Handler(handler).Get("/some/path").
		Header("Authorization", "Bearer good").
		Header(SubjectHeader, "forged").
		Expect(t).Status(http.StatusOK).End()
	assert.Equal(t, "bob", seen.Get(SubjectHeader))
	assert.Equal(t, "static", seen.Get(StrategyHeader))
	assert.Equal(t, "ops,dev", seen.Get(RolesHeader))

	apitest.Handler(handler).Get("/anon").
		Header(SubjectHeader, "forged").
		Expect(t).Status(http.StatusOK).End()
	assert.Empty(t, seen.Get(SubjectHeader), "client supplied identity headers must not reach upstream")

	apitest.Handler(handler).Get("/.chainmail/healthz").Expect(t).Status(http.StatusNoContent).End()
	assert.Equal(t, 2, upstreamCount)
}

func TestForcedGatewayNeverReachesUpstream(t *testing.T) {
	var upstreamCount int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCount++
	}))
	defer upstream.Close()
	upstreamURL, _ := url.Parse(upstream.URL)

	handler, err := AsHandler(upstreamURL, newGuard(t, true, false))
	require.NoError(t, err)
	apitest.Handler(handler).Post("/anything").Expect(t).Status(http.StatusUnauthorized).Body("login first\n").End()
	assert.Equal(t, 0, upstreamCount)
}

func TestInvalidUpstream(t *testing.T) {
	for _, raw := range []string{"/relative", "ftp://example.com", "http://"} {
		u, _ := url.Parse(raw)
		_, err := AsHandler(u, newGuard(t, false, false))
		var invalid InvalidUpstream
		assert.True(t, errors.As(err, &invalid), "url %v", raw)
	}
	_, err := AsHandler(nil, newGuard(t, false, false))
	assert.Equal(t, InvalidUpstream{}, err)
}

func TestUpgradeThroughInterceptingGateway(t *testing.T) {
	subjects := make(chan string, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subjects <- r.Header.Get(SubjectHeader)
		conn, brw, err := http.NewResponseController(w).Hijack()
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		fmt.Fprint(brw, "HTTP/1.1 101 Switching Protocols\r\nConnection: Upgrade\r\nUpgrade: echo\r\n\r\n")
		brw.Flush()
		line, _ := brw.ReadString('\n')
		fmt.Fprint(brw, line)
		brw.Flush()
	}))
	defer upstream.Close()
	upstreamURL, _ := url.Parse(upstream.URL)

	handler, err := AsHandler(upstreamURL, newGuard(t, false, true))
	require.NoError(t, err)
	gw := httptest.NewServer(handler)
	defer gw.Close()

	conn, err := net.Dial("tcp", gw.Listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	fmt.Fprint(conn, "GET /socket HTTP/1.1\r\nHost: test\r\nAuthorization: Bearer good\r\nConnection: Upgrade\r\nUpgrade: echo\r\n\r\n")
	br := bufio.NewReader(conn)
	res, err := http.ReadResponse(br, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, res.StatusCode)
	assert.Equal(t, "bob", <-subjects)

	fmt.Fprint(conn, "ping\n")
	line, err := br.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ping\n", line)
}
