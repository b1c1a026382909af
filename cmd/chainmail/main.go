package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/andrebq/chainmail/cmd/chainmail/serve"
	"github.com/andrebq/chainmail/cmd/chainmail/users"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "chainmail",
		Usage: "Try authentication strategy chains against a small demo API",
		Commands: []*cli.Command{
			serve.Cmd(),
			users.Cmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}
