package serve

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andrebq/chainmail/internal/cmdflags"
	"github.com/andrebq/chainmail/internal/demo"
	"github.com/andrebq/chainmail/internal/gateway"
	"github.com/andrebq/chainmail/internal/httpserver"
	"github.com/andrebq/chainmail/internal/logutil"
	"github.com/andrebq/chainmail/principal"
	"github.com/andrebq/chainmail/strategies/basic"
	"github.com/andrebq/chainmail/strategies/bearer"
	"github.com/andrebq/chainmail/strategies/luascript"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	bindAddr := "localhost:7007"
	usersDB := ""
	script := ""
	upstream := ""
	logLevel := ""
	var tokenTTL time.Duration
	scriptTimeout := 2 * time.Second
	var tokens cli.StringSlice
	var order cli.StringSlice
	var force, intercept bool
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the demo API protected by the configured strategy chain",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "bind",
				Usage:       "Address to bind for incoming request",
				EnvVars:     []string{"CHAINMAIL_BIND"},
				Destination: &bindAddr,
				Value:       bindAddr,
			},
			cmdflags.UsersDB(&usersDB),
			cmdflags.LogLevel(&logLevel),
			cmdflags.TokenTTL(&tokenTTL),
			&cli.StringSliceFlag{
				Name:        "token",
				Usage:       "Accept a bearer token, in the form subject[:role,role]=token (enables the bearer strategy)",
				Destination: &tokens,
			},
			&cli.StringFlag{
				Name:        "script",
				Usage:       "Path to a lua script implementing a strategy",
				Destination: &script,
			},
			&cli.DurationFlag{
				Name:        "script-timeout",
				Usage:       "Abort a script call that takes longer than this (0 disables the limit)",
				EnvVars:     []string{"CHAINMAIL_SCRIPT_TIMEOUT"},
				Destination: &scriptTimeout,
				Value:       scriptTimeout,
			},
			&cli.StringFlag{
				Name:        "upstream",
				Usage:       "Proxy every request to this url instead of serving the demo API",
				EnvVars:     []string{"CHAINMAIL_UPSTREAM"},
				Destination: &upstream,
			},
			&cli.StringSliceFlag{
				Name:        "strategy",
				Aliases:     []string{"s"},
				Usage:       "Order in which strategies are tried (bearer, basic, script), defaults to every enabled one",
				Destination: &order,
			},
			&cli.BoolFlag{
				Name:        "force",
				Usage:       "Reject anonymous requests before they reach the API",
				EnvVars:     []string{"CHAINMAIL_FORCE"},
				Destination: &force,
			},
			&cli.BoolFlag{
				Name:        "intercept",
				Usage:       "Replace 401 responses from the API with the login required response",
				EnvVars:     []string{"CHAINMAIL_INTERCEPT"},
				Destination: &intercept,
			},
		},
		Action: func(ctx *cli.Context) error {
			logger := logutil.Setup(logLevel, true)
			appCtx := logutil.WithLogger(ctx.Context, logger)
			var strategies demo.Strategies
			strategies.Order = order.Value()
			if len(tokens.Value()) > 0 {
				store, err := loadTokens(appCtx, tokens.Value(), tokenTTL)
				if err != nil {
					return err
				}
				strategies.Tokens = store
			}
			if usersDB != "" {
				users, err := basic.Open(appCtx, usersDB)
				if err != nil {
					return err
				}
				defer users.Close()
				strategies.Users = users
			}
			if script != "" {
				s, err := luascript.Load(script)
				if err != nil {
					return err
				}
				strategies.Script = s.WithTimeout(scriptTimeout)
			}
			c, err := demo.BuildChain(strategies)
			if err != nil {
				return err
			}
			logger.Info().Strs("strategies", c.Names()).Bool("force", force).Bool("intercept", intercept).Msg("Strategy chain ready")
			opts := demo.Options{
				Chain:     c,
				Force:     force,
				Intercept: intercept,
				Logger:    logger,
			}
			var handler http.Handler
			if upstream != "" {
				handler, err = gatewayHandler(opts, upstream)
			} else {
				handler, err = demo.Handler(opts)
			}
			if err != nil {
				return err
			}
			return httpserver.Serve(appCtx, bindAddr, handler)
		},
	}
}

func gatewayHandler(opts demo.Options, upstream string) (http.Handler, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, err
	}
	g, err := demo.NewGuard(opts)
	if err != nil {
		return nil, err
	}
	handler, err := gateway.AsHandler(u, g)
	if err != nil {
		return nil, err
	}
	return logutil.Middleware(opts.Logger, handler), nil
}

func loadTokens(ctx context.Context, entries []string, ttl time.Duration) (bearer.TokenStore, error) {
	store, err := bearer.InMemoryTokenStore(ttl)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		p, token, err := parseToken(e)
		if err != nil {
			return nil, err
		}
		err = store.Save(ctx, token, p)
		if err != nil {
			return nil, fmt.Errorf("unable to save token for %v, cause %w", p.Subject, err)
		}
	}
	return store, nil
}

func parseToken(entry string) (principal.Principal, string, error) {
	var p principal.Principal
	idx := strings.Index(entry, "=")
	if idx <= 0 || idx == len(entry)-1 {
		return p, "", fmt.Errorf("invalid token entry %q, expecting subject[:roles]=token", entry)
	}
	subject, token := entry[:idx], entry[idx+1:]
	if i := strings.Index(subject, ":"); i >= 0 {
		if roles := subject[i+1:]; roles != "" {
			p.Roles = strings.Split(roles, ",")
		}
		subject = subject[:i]
	}
	if subject == "" {
		return p, "", fmt.Errorf("invalid token entry %q, subject cannot be empty", entry)
	}
	p.Subject = subject
	return p, token, nil
}
