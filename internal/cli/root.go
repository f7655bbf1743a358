package cli

import (
	"os"

	"tictactoe-lobby/internal/config"

	"github.com/spf13/cobra"
)

type options struct {
	server    string
	token     string
	jwtSecret string
	output    string
}

// NewRootCmd builds the lobbyctl command tree. Flag defaults come from the
// LOBBY_* environment.
func NewRootCmd() *cobra.Command {
	env, _ := config.LoadCLI()
	opts := &options{
		server:    env.ServerURL,
		token:     env.Token,
		jwtSecret: env.JWTSecret,
		output:    "text",
	}

	root := &cobra.Command{
		Use:   "lobbyctl",
		Short: "Inspect and operate a tic-tac-toe lobby server",
		Long: `lobbyctl talks to the lobby server's HTTP API.

It lists rooms and online users, checks health, and can mint access tokens
for local testing when JWT_SECRET is available.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", opts.server, "Server URL (env: LOBBY_SERVER)")
	root.PersistentFlags().StringVar(&opts.token, "token", opts.token, "Access token (env: LOBBY_TOKEN)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", opts.output, "Output format: text, json")

	root.AddCommand(newTokenCmd(opts))
	root.AddCommand(newRoomsCmd(opts))
	root.AddCommand(newPresenceCmd(opts))
	root.AddCommand(newHealthCmd(opts))
	return root
}

func (o *options) client() *Client {
	return NewClient(o.server, o.token)
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
