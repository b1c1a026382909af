package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/andrebq/chainmail/internal/logutil"
)

const (
	shutdownGrace = 30 * time.Second
)

// Serve runs handler on bind until ctx is cancelled, then shuts the server
// down giving in-flight requests some time to finish.
func Serve(ctx context.Context, bind string, handler http.Handler) error {
	server := &http.Server{
		Handler:           handler,
		Addr:              bind,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute * 5,
	}
	log := logutil.GetOrDefault(ctx).With().Str("server.addr", server.Addr).Logger()
	listenErr := make(chan error, 1)
	go func() {
		defer close(listenErr)
		log.Info().Msg("Starting HTTP server")
		err := server.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()
	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("Initiating shutdown process")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	if err != nil {
		return err
	}
	log.Info().Msg("Shutdown completed")
	return <-listenErr
}
