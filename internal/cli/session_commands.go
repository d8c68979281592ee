package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faishion/tryon-client/internal/config"
	"github.com/faishion/tryon-client/internal/session"
)

// newSessionCmd creates the 'session' command group.
func newSessionCmd() *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or edit the stored session",
		Long: `Read and write the persistent session store.

Well-known keys:
  ` + session.KeyUserID + `       id used to fetch try-on history
  ` + session.KeyAccessToken + `  token issued by the auth service`,
	}

	sessionCmd.AddCommand(newSessionGetCmd())
	sessionCmd.AddCommand(newSessionSetCmd())
	sessionCmd.AddCommand(newSessionDeleteCmd())

	return sessionCmd
}

// openSessionStore opens the store named by the config file.
func openSessionStore() (session.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	switch cfg.SessionBackend {
	case session.BackendFile, session.BackendSQLite:
	default:
		return nil, config.ErrInvalidSession
	}
	return session.Open(cfg.SessionBackend, cfg.SessionPath)
}

func newSessionGetCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a session value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSessionStore()
			if err != nil {
				return err
			}
			defer store.Close()

			value, err := store.Get(GetContext(), args[0])
			if errors.Is(err, session.ErrNotFound) {
				return fmt.Errorf("%s is not set", args[0])
			}
			if err != nil {
				return err
			}

			if args[0] == session.KeyAccessToken && !reveal {
				// Never display any portion of the token by default
				fmt.Fprintf(cmd.OutOrStdout(), "<set (%d chars)>\n", len(value))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print the access token instead of masking it")
	return cmd
}

func newSessionSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a session value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSessionStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Set(GetContext(), args[0], args[1]); err != nil {
				return err
			}
			GetLogger().Debug().Str("key", args[0]).Msg("session value stored")
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s saved\n", args[0])
			return nil
		},
	}
}

func newSessionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <key>",
		Aliases: []string{"rm"},
		Short:   "Remove a session value",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSessionStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(GetContext(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s removed\n", args[0])
			return nil
		},
	}
}
