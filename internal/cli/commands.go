package cli

import (
	"errors"
	"time"

	"tictactoe-lobby/internal/auth"

	"github.com/spf13/cobra"
)

func newTokenCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Access token helpers",
	}

	var (
		userID string
		ttl    time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign an access token for a user (needs JWT_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.jwtSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			tok, err := auth.NewIssuer(opts.jwtSecret).Issue(userID, ttl)
			if err != nil {
				return err
			}
			out := IssuedToken{UserID: userID, Token: tok}
			if ttl > 0 {
				exp := time.Now().Add(ttl).UTC().Truncate(time.Second)
				out.ExpiresAt = &exp
			}
			return NewOutput(cmd.OutOrStdout(), opts.output).Print(out)
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "User id to put in the sub claim")
	issue.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime, 0 for no expiry")
	_ = issue.MarkFlagRequired("user")
	issue.Flags().StringVar(&opts.jwtSecret, "secret", opts.jwtSecret, "Signing secret (env: JWT_SECRET)")

	cmd.AddCommand(issue)
	return cmd
}

func newRoomsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "Inspect rooms",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List open rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := opts.client().Rooms()
			if err != nil {
				return err
			}
			return NewOutput(cmd.OutOrStdout(), opts.output).Print(rooms)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get <room-id>",
		Short: "Show one room with its board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.client().Room(args[0])
			if err != nil {
				return err
			}
			return NewOutput(cmd.OutOrStdout(), opts.output).Print(r)
		},
	})
	return cmd
}

func newPresenceCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presence",
		Short: "Inspect online users",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List online users and their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := opts.client().Presence()
			if err != nil {
				return err
			}
			return NewOutput(cmd.OutOrStdout(), opts.output).Print(users)
		},
	})
	return cmd
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := opts.client().Health()
			if err != nil {
				return err
			}
			return NewOutput(cmd.OutOrStdout(), opts.output).Print(h)
		},
	}
}
