package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teamcache/teamcache/internal/expiry"
	"github.com/teamcache/teamcache/internal/model"
	"github.com/teamcache/teamcache/internal/ui"
)

var dueCmd = &cobra.Command{
	Use:     "due",
	GroupID: "data",
	Short:   "List members whose period ends today or tomorrow",
	Long: `List members whose subscription period ends within a day. Standard teams
run 30-day periods and yearly teams 365-day periods, counted from the
member's join date.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		a, err := local(cmd.Context())
		if err != nil {
			return err
		}

		today := model.Today()
		if on, _ := cmd.Flags().GetString("on"); on != "" {
			if today, err = model.ParseDate(on); err != nil {
				return err
			}
		}

		snap, err := a.teams.Snapshot(cmd.Context(), owner)
		if err != nil {
			return err
		}
		notices := expiry.Due(snap.Teams, snap.Members, today)
		if len(notices) == 0 {
			fmt.Println(ui.RenderMuted("Nobody is due."))
			return nil
		}

		rows := make([][]string, 0, len(notices))
		for _, n := range notices {
			when := ui.RenderWarn("tomorrow")
			if n.DaysUntil == 0 {
				when = ui.RenderFail("today")
			}
			rows = append(rows, []string{
				n.Team.Name,
				contact(n.Member),
				n.Plan.String(),
				n.ExpiresOn.String(),
				when,
			})
		}
		fmt.Print(ui.Table([]string{"TEAM", "MEMBER", "PLAN", "EXPIRES", "DUE"}, rows))
		return nil
	},
}

func init() {
	dueCmd.Flags().String("on", "", "evaluate as of this date (YYYY-MM-DD)")
	rootCmd.AddCommand(dueCmd)
}
