package logutil

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareAttachesRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	handler := Middleware(base, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := GetOrDefault(r.Context())
		l.Info().Msg("inside")
		w.WriteHeader(http.StatusNoContent)
	}))
	apitest.Handler(handler).Get("/some/path").Expect(t).Status(http.StatusNoContent).End()
	assert.Contains(t, buf.String(), `"http.path":"/some/path"`)
	assert.Contains(t, buf.String(), `"http.method":"GET"`)
}

func TestGetOrDefaultWithoutLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), zerolog.New(&buf))
	l := GetOrDefault(ctx)
	l.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")

	// must not panic
	_ = GetOrDefault(context.Background())
}
