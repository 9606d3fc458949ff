// Command teamcache manages an offline cache of teams and members and
// syncs it with the shared Postgres store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teamcache/teamcache/internal/config"
	"github.com/teamcache/teamcache/internal/ui"
)

var (
	v   = config.NewViper()
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "teamcache",
	Short: "Offline-first team and member cache",
	Long: `teamcache keeps teams and their members in a local SQLite database that
works without a network connection. Every change is recorded in a sync
queue; 'teamcache sync' replays the queue against the remote Postgres store
and then refreshes the local copy from it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(v)
		return err
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Teams and members:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.String("data-dir", config.DefaultDataDir(), "directory holding the local database and config")
	flags.String("owner", "", "owner id all data is scoped to")
	flags.String("remote", "", "Postgres DSN of the remote store")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-file", "", "also write logs to this file, rotated")

	bindFlag(v, "data_dir", "data-dir")
	bindFlag(v, "owner_id", "owner")
	bindFlag(v, "remote.dsn", "remote")
	bindFlag(v, "log.level", "log-level")
	bindFlag(v, "log.file", "log-file")
}

func bindFlag(v *viper.Viper, key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func main() {
	a := &app{}
	err := rootCmd.ExecuteContext(withApp(context.Background(), a))
	if cerr := a.close(); cerr != nil {
		fmt.Fprintf(os.Stderr, "warning: shutdown: %v\n", cerr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("Error:"), err)
		os.Exit(1)
	}
}
