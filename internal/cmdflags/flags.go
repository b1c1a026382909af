package cmdflags

import (
	"time"

	"github.com/urfave/cli/v2"
)

const (
	envPrefix = "CHAINMAIL_"
)

func UsersDB(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "users-db",
		Aliases:     []string{"u"},
		Usage:       "Directory holding the user database used by the basic strategy",
		EnvVars:     []string{envPrefix + "USERS_DB"},
		Destination: out,
		Value:       *out,
	}
}

func LogLevel(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = "info"
	}
	return &cli.StringFlag{
		Name:        "log-level",
		Usage:       "One of trace, debug, info, warn or error",
		EnvVars:     []string{envPrefix + "LOG_LEVEL"},
		Value:       *out,
		Destination: out,
	}
}

func TokenTTL(out *time.Duration) cli.Flag {
	if *out == 0 {
		*out = time.Hour
	}
	return &cli.DurationFlag{
		Name:        "token-ttl",
		Usage:       "How long tokens given with --token remain valid",
		EnvVars:     []string{envPrefix + "TOKEN_TTL"},
		Value:       *out,
		Destination: out,
	}
}
