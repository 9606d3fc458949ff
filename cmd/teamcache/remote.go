package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teamcache/teamcache/internal/remote/postgres"
	"github.com/teamcache/teamcache/internal/ui"
)

var remoteCmd = &cobra.Command{
	Use:     "remote",
	GroupID: "setup",
	Short:   "Manage the remote Postgres store",
}

var remoteMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the remote teams and members tables",
	Long: `Connect to remote.dsn and create the teams and members tables and their
indexes. Every statement is idempotent, so running it again is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Remote.DSN == "" {
			return errors.New("no remote configured; set remote.dsn or TEAMCACHE_REMOTE_DSN")
		}
		a, err := local(cmd.Context())
		if err != nil {
			return err
		}

		rs, err := postgres.Connect(cmd.Context(), cfg.Remote.DSN, a.logger.Named("remote"))
		if err != nil {
			return err
		}
		defer rs.Close()

		if err := rs.Migrate(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("%s remote schema is up to date\n", ui.RenderPass("✓"))
		return nil
	},
}

func init() {
	remoteCmd.AddCommand(remoteMigrateCmd)
	rootCmd.AddCommand(remoteCmd)
}
