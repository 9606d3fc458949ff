package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/teamcache/teamcache/internal/model"
	"github.com/teamcache/teamcache/internal/ui"
)

var teamCmd = &cobra.Command{
	Use:     "team",
	GroupID: "data",
	Short:   "Manage teams",
}

var teamAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a team",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		a, err := local(cmd.Context())
		if err != nil {
			return err
		}

		admin, _ := cmd.Flags().GetString("admin")
		yearly, _ := cmd.Flags().GetBool("yearly")
		plus, _ := cmd.Flags().GetBool("plus")

		t, err := a.teams.CreateTeam(cmd.Context(), owner, model.Team{
			Name:       args[0],
			AdminEmail: admin,
			IsYearly:   yearly,
			IsPlus:     plus,
		})
		if err != nil {
			return err
		}
		fmt.Printf("%s team %s (%s)\n", ui.RenderPass("Created"), t.Name, ui.RenderAccent(t.ID))
		return nil
	},
}

var teamListCmd = &cobra.Command{
	Use:   "list",
	Short: "List teams",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		a, err := local(cmd.Context())
		if err != nil {
			return err
		}

		snap, err := a.teams.Snapshot(cmd.Context(), owner)
		if err != nil {
			return err
		}
		active, err := a.teams.ActiveTeam(cmd.Context(), owner)
		if err != nil {
			return err
		}
		if len(snap.Teams) == 0 {
			fmt.Println(ui.RenderMuted("No teams."))
			return nil
		}

		rows := make([][]string, 0, len(snap.Teams))
		for _, t := range snap.Teams {
			mark := ""
			if t.ID == active {
				mark = "*"
			}
			plan := "standard"
			if t.IsYearly {
				plan = "yearly"
			}
			rows = append(rows, []string{
				mark + t.ID,
				t.Name,
				plan,
				fmt.Sprint(len(snap.MembersOf(t.ID))),
				formatBackup(t.LastBackupAt),
			})
		}
		fmt.Print(ui.Table([]string{"ID", "NAME", "PLAN", "MEMBERS", "BACKED UP"}, rows))
		return nil
	},
}

var teamRmCmd = &cobra.Command{
	Use:   "rm <team-id>",
	Short: "Delete a team and all of its members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		a, err := local(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.teams.DeleteTeam(cmd.Context(), owner, args[0]); err != nil {
			return err
		}
		fmt.Printf("%s team %s\n", ui.RenderPass("Deleted"), args[0])
		return nil
	},
}

var teamUseCmd = &cobra.Command{
	Use:   "use <team-id>",
	Short: "Mark a team as the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		a, err := local(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.teams.SetActiveTeam(cmd.Context(), owner, args[0]); err != nil {
			return err
		}
		fmt.Printf("Active team is now %s\n", ui.RenderAccent(args[0]))
		return nil
	},
}

var teamBackupCmd = &cobra.Command{
	Use:   "backup [file]",
	Short: "Write a backup file and stamp every team as backed up",
	Long: `Write all of the owner's teams and members to a JSON backup file and
record the backup time on every team. The file defaults to
backup-<date>.json in the data directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		a, err := local(cmd.Context())
		if err != nil {
			return err
		}

		path := filepath.Join(cfg.DataDir, "backup-"+model.Today().String()+".json")
		if len(args) == 1 {
			path = args[0]
		}
		if err := a.backup.Backup(cmd.Context(), owner, path); err != nil {
			return err
		}
		fmt.Printf("%s backup to %s\n", ui.RenderPass("Wrote"), path)
		return nil
	},
}

func formatBackup(at *time.Time) string {
	if at == nil {
		return "never"
	}
	return at.Local().Format("2006-01-02 15:04")
}

func init() {
	teamAddCmd.Flags().String("admin", "", "admin email")
	teamAddCmd.Flags().Bool("yearly", false, "team is on the yearly plan")
	teamAddCmd.Flags().Bool("plus", false, "team is on the plus tier")

	teamCmd.AddCommand(teamAddCmd)
	teamCmd.AddCommand(teamListCmd)
	teamCmd.AddCommand(teamRmCmd)
	teamCmd.AddCommand(teamUseCmd)
	teamCmd.AddCommand(teamBackupCmd)
	rootCmd.AddCommand(teamCmd)
}
