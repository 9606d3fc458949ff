package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teamcache/teamcache/internal/daemon"
	"github.com/teamcache/teamcache/internal/dashboard"
	tcsync "github.com/teamcache/teamcache/internal/sync"
	"github.com/teamcache/teamcache/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Push queued changes, then pull the remote state",
	Long: `Run one sync cycle:
  1. Replay the local sync queue against the remote, in order
  2. Replace the local copy with the owner's remote teams and members

When the remote cannot be reached nothing is changed and the queue is kept
for the next run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		a, err := withRemote(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("%s Syncing owner %s...\n", ui.RenderAccent("→"), owner)
		res := a.engine.Run(cmd.Context(), owner)
		printResult(res)
		if !res.OK() && !res.Offline {
			return fmt.Errorf("sync failed: %w", res.Err)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show local cache and queue status",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		a, err := local(cmd.Context())
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		snap, err := a.teams.Snapshot(ctx, owner)
		if err != nil {
			return err
		}
		queued, err := a.store.QueueLength(ctx, owner)
		if err != nil {
			return err
		}
		last, err := a.store.LastSync(ctx, owner)
		if err != nil {
			return err
		}
		active, err := a.teams.ActiveTeam(ctx, owner)
		if err != nil {
			return err
		}

		lastSync := ui.RenderWarn("never")
		if last != nil {
			lastSync = last.Local().Format("2006-01-02 15:04:05")
		}
		queue := ui.RenderPass("empty")
		if queued > 0 {
			queue = ui.RenderWarn(fmt.Sprintf("%d pending", queued))
		}
		if active == "" {
			active = ui.RenderMuted("none")
		}

		fmt.Printf("\n%s teamcache status\n\n", ui.RenderAccent("●"))
		fmt.Println(ui.Field("Owner", owner))
		fmt.Println(ui.Field("Database", cfg.StorePath()))
		fmt.Println(ui.Field("Teams", len(snap.Teams)))
		fmt.Println(ui.Field("Members", len(snap.Members)))
		fmt.Println(ui.Field("Active team", active))
		fmt.Println(ui.Field("Queue", queue))
		fmt.Println(ui.Field("Last sync", lastSync))

		check, _ := cmd.Flags().GetBool("check")
		if check && cfg.Remote.DSN != "" {
			a, err := withRemote(ctx)
			if err != nil {
				return err
			}
			remote := ui.RenderPass("reachable")
			if err := a.remote.Ping(ctx); err != nil {
				remote = ui.RenderFail("unreachable")
			}
			fmt.Println(ui.Field("Remote", remote))
			fmt.Println(ui.Field("Engine", a.engine.State(owner)))
		}
		fmt.Println()
		return nil
	},
}

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run sync cycles in the foreground",
	Long: `Run the sync daemon in the foreground until interrupted.

The daemon:
  1. Runs a cycle on start and then every sync.interval
  2. Watches the local database and, once writes settle, runs a cycle if
     changes are queued
  3. Optionally serves a WebSocket dashboard of cycle results (--dashboard)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		a, err := withRemote(cmd.Context())
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		withDashboard, _ := cmd.Flags().GetBool("dashboard")
		if withDashboard {
			server := dashboard.NewServer(&dashboard.Config{
				Port:   cfg.Dashboard.Port,
				Host:   "127.0.0.1",
				Logger: a.logger.Named("dashboard"),
			})
			handler := dashboard.NewHandler(server, a.logger.Named("dashboard"))
			a.engine.OnCycle(handler.OnCycle)
			if err := server.Start(); err != nil {
				return fmt.Errorf("failed to start dashboard: %w", err)
			}
			defer func() {
				if err := server.Stop(); err != nil {
					a.logger.Warn("dashboard shutdown failed", zap.Error(err))
				}
			}()
			fmt.Printf("   Dashboard: ws://%s/ws\n", server.Addr())
		}

		d, err := daemon.New(a.engine, owner, cfg.StorePath(), &daemon.Config{
			Interval: cfg.Sync.Interval,
			Debounce: cfg.Sync.Debounce,
			Pending: func(ctx context.Context) (bool, error) {
				n, err := a.store.QueueLength(ctx, owner)
				return n > 0, err
			},
			Logger: a.logger.Named("daemon"),
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Starting sync daemon for %s\n", ui.RenderAccent("→"), owner)
		fmt.Printf("   Database: %s\n", cfg.StorePath())
		fmt.Printf("   Interval: %v\n", cfg.Sync.Interval)
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		a.engine.OnCycle(printResult)
		if err := d.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()

		fmt.Println("\nStopping daemon...")
		if err := d.Stop(); err != nil {
			return err
		}
		stats := d.Stats()
		fmt.Printf("%s %d cycles (%d failed, %d offline)\n",
			ui.RenderPass("Stopped."), stats.Cycles, stats.Failed, stats.Offline)
		return nil
	},
}

func printResult(res tcsync.Result) {
	took := res.Duration.Round(time.Millisecond)
	switch {
	case res.Offline:
		fmt.Printf("%s Remote unreachable; queue kept for the next cycle\n", ui.RenderWarn("!"))
	case res.OK():
		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), took)
		fmt.Printf("   Pushed: %d\n", res.Push.Removed)
		if res.Push.Failed > 0 || res.Push.Held > 0 {
			fmt.Printf("   %s %d failed, %d held back\n", ui.RenderWarn("Kept:"), res.Push.Failed, res.Push.Held)
		}
		fmt.Printf("   Teams: %d\n", len(res.Snapshot.Teams))
		fmt.Printf("   Members: %d\n", len(res.Snapshot.Members))
	default:
		fmt.Printf("%s Sync failed after %v: %v\n", ui.RenderFail("✗"), took, res.Err)
	}
}

func init() {
	statusCmd.Flags().Bool("check", false, "also check that the remote is reachable")
	daemonCmd.Flags().Bool("dashboard", false, "serve a WebSocket dashboard on dashboard.port")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(daemonCmd)
}
