package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teamcache/teamcache/internal/model"
	"github.com/teamcache/teamcache/internal/ui"
)

var memberCmd = &cobra.Command{
	Use:     "member",
	GroupID: "data",
	Short:   "Manage team members",
}

var memberAddCmd = &cobra.Command{
	Use:   "add <team-id>",
	Short: "Add a member to a team",
	Long: `Add a member to a team. A member needs an email or a phone number.

--joined takes YYYY-MM-DD or a phrase such as "yesterday" or "last monday";
it defaults to today.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		email, _ := flags.GetString("email")
		phone, _ := flags.GetString("phone")
		telegram, _ := flags.GetString("telegram")
		joined, _ := flags.GetString("joined")
		pending, _ := flags.GetFloat64("pending")
		subs, _ := flags.GetStringSlice("sub")

		join, err := parseJoinDate(joined, time.Now())
		if err != nil {
			return err
		}

		a, err := local(cmd.Context())
		if err != nil {
			return err
		}
		m, err := a.teams.AddMember(cmd.Context(), owner, model.Member{
			TeamID:        args[0],
			Email:         email,
			Phone:         phone,
			Telegram:      model.StringPtr(telegram),
			JoinDate:      join,
			PendingAmount: pending,
			Subscriptions: subs,
		})
		if err != nil {
			return err
		}
		fmt.Printf("%s member %s (%s), joined %s\n",
			ui.RenderPass("Added"), contact(m), ui.RenderAccent(m.ID), m.JoinDate)
		return nil
	},
}

var memberListCmd = &cobra.Command{
	Use:   "list [team-id]",
	Short: "List members, of one team or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		a, err := local(cmd.Context())
		if err != nil {
			return err
		}

		teamID := ""
		if len(args) == 1 {
			teamID = args[0]
		}
		members, err := a.teams.ListMembers(cmd.Context(), owner, teamID)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			fmt.Println(ui.RenderMuted("No members."))
			return nil
		}

		rows := make([][]string, 0, len(members))
		for _, m := range members {
			paid := ui.RenderWarn("unpaid")
			if m.IsPaid {
				paid = ui.RenderPass("paid")
			}
			rows = append(rows, []string{
				m.ID,
				m.TeamID,
				contact(m),
				m.JoinDate.String(),
				paid,
				fmt.Sprintf("%.2f", m.PendingAmount),
				strings.Join(m.Subscriptions, ","),
			})
		}
		fmt.Print(ui.Table([]string{"ID", "TEAM", "CONTACT", "JOINED", "STATUS", "PENDING", "SUBS"}, rows))
		return nil
	},
}

var memberRmCmd = &cobra.Command{
	Use:   "rm <member-id>",
	Short: "Remove a member",
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
		if err := a.teams.DeleteMember(cmd.Context(), owner, args[0]); err != nil {
			return err
		}
		fmt.Printf("%s member %s\n", ui.RenderPass("Removed"), args[0])
		return nil
	},
}

var memberPayCmd = &cobra.Command{
	Use:   "pay <member-id> <amount>",
	Short: "Record a payment from a member",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		amount, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q", args[1])
		}

		a, err := local(cmd.Context())
		if err != nil {
			return err
		}
		m, err := a.teams.RecordPayment(cmd.Context(), owner, args[0], amount)
		if err != nil {
			return err
		}
		fmt.Printf("%s %.2f from %s (paid %.2f, pending %.2f)\n",
			ui.RenderPass("Recorded"), amount, contact(m), m.PaidAmount, m.PendingAmount)
		return nil
	},
}

func contact(m model.Member) string {
	if m.Email != "" {
		return m.Email
	}
	return m.Phone
}

func init() {
	flags := memberAddCmd.Flags()
	flags.String("email", "", "member email")
	flags.String("phone", "", "member phone number")
	flags.String("telegram", "", "telegram handle")
	flags.String("joined", "", "join date (YYYY-MM-DD or \"yesterday\", \"last monday\")")
	flags.Float64("pending", 0, "amount still owed")
	flags.StringSlice("sub", nil, "subscription tag (repeatable)")

	memberCmd.AddCommand(memberAddCmd)
	memberCmd.AddCommand(memberListCmd)
	memberCmd.AddCommand(memberRmCmd)
	memberCmd.AddCommand(memberPayCmd)
	rootCmd.AddCommand(memberCmd)
}
