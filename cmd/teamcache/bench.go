package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/teamcache/teamcache/internal/loadtest"
	"github.com/teamcache/teamcache/internal/ui"
)

var benchCmd = &cobra.Command{
	Use:     "bench",
	GroupID: "setup",
	Short:   "Load test the local write path in a scratch database",
	Long: `Populate a throwaway database, run concurrent writers and readers against
it, and check that the sync queue stayed consistent. Your own data is not
touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		numTeams, _ := flags.GetInt("teams")
		members, _ := flags.GetInt("members")
		writers, _ := flags.GetInt("writers")
		ops, _ := flags.GetInt("ops")
		if numTeams < 1 || members < 1 || writers < 1 || ops < 1 {
			return fmt.Errorf("--teams, --members, --writers and --ops must all be positive")
		}

		dir, err := os.MkdirTemp("", "teamcache-bench-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)

		ctx := cmd.Context()
		fmt.Printf("%s Populating %d teams x %d members...\n", ui.RenderAccent("→"), numTeams, members)
		f, err := loadtest.Populate(ctx, filepath.Join(dir, "bench.db"), "bench", numTeams, members)
		if err != nil {
			return err
		}
		defer f.Close()

		fmt.Printf("\nWrites (%d writers x %d ops):\n", writers, ops)
		ws, werr := f.RunConcurrentWrites(ctx, writers, ops)
		ws.Print(os.Stdout)

		fmt.Printf("\nReads (%d readers x %d snapshots):\n", writers, ops)
		rs, rerr := f.RunConcurrentReads(ctx, writers, ops)
		rs.Print(os.Stdout)
		fmt.Println()

		if werr != nil {
			return werr
		}
		if rerr != nil {
			return rerr
		}
		if err := f.VerifyQueue(ctx); err != nil {
			return fmt.Errorf("queue check failed: %w", err)
		}
		fmt.Printf("%s queue holds %d entries in order\n", ui.RenderPass("✓"), f.Mutations())
		return nil
	},
}

func init() {
	benchCmd.Flags().Int("teams", 20, "teams to create")
	benchCmd.Flags().Int("members", 10, "members per team")
	benchCmd.Flags().Int("writers", 16, "concurrent writers and readers")
	benchCmd.Flags().Int("ops", 25, "operations per writer or reader")
	rootCmd.AddCommand(benchCmd)
}
