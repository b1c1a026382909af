package users

import (
	"bufio"
	"crypto/rand"
	"errors"
	"os"
	"strings"

	"github.com/andrebq/chainmail/internal/cmdflags"
	"github.com/andrebq/chainmail/principal"
	"github.com/andrebq/chainmail/strategies/basic"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	var store *basic.Store
	var usersDB string
	return &cli.Command{
		Name:  "users",
		Usage: "Manage the user database used by the basic strategy",
		Flags: []cli.Flag{
			cmdflags.UsersDB(&usersDB),
		},
		Before: func(ctx *cli.Context) error {
			if usersDB == "" {
				return errors.New("missing --users-db")
			}
			var err error
			store, err = basic.Open(ctx.Context, usersDB)
			return err
		},
		After: func(ctx *cli.Context) error {
			if store == nil {
				return nil
			}
			return store.Close()
		},
		Subcommands: []*cli.Command{
			registerCmd(&store),
		},
	}
}

func registerCmd(store **basic.Store) *cli.Command {
	var username string
	var displayName string
	var roles cli.StringSlice
	return &cli.Command{
		Name:  "register",
		Usage: "Register a new user (password is read from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "username",
				Aliases:     []string{"user"},
				Usage:       "Login of the user to register",
				Destination: &username,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "name",
				Usage:       "Display name",
				Destination: &displayName,
			},
			&cli.StringSliceFlag{
				Name:        "role",
				Usage:       "Role granted to the user, can be repeated",
				Destination: &roles,
			},
		},
		Action: func(ctx *cli.Context) error {
			sc := bufio.NewScanner(os.Stdin)
			if !sc.Scan() {
				if sc.Err() != nil {
					return sc.Err()
				}
				return errors.New("missing password from stdin")
			}
			password := basic.PlainText(strings.TrimSpace(sc.Text()))
			defer password.Zero()
			if len(password) == 0 {
				return errors.New("missing password from stdin")
			}
			return (*store).Register(ctx.Context, principal.Principal{
				Subject: username,
				Name:    displayName,
				Roles:   roles.Value(),
			}, password, rand.Reader)
		},
	}
}
