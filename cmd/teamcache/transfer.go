package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teamcache/teamcache/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export [file]",
	GroupID: "data",
	Short:   "Export teams and members as JSON",
	Long: `Export all of the owner's teams, members, the active team and notepads
as a JSON document. Writes to stdout unless a file is given; unlike
'team backup', exporting does not stamp teams as backed up.`,
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

		if len(args) == 1 {
			doc, err := a.backup.WriteFile(cmd.Context(), owner, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%s %d teams to %s\n", ui.RenderPass("Exported"), len(doc.Teams), args[0])
			return nil
		}

		doc, err := a.backup.Export(cmd.Context(), owner)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "data",
	Short:   "Import a JSON backup",
	Long: `Import a backup written by 'export' or 'team backup', or a legacy
single-team document {teamName, adminEmail, members}.

Teams and members in a current backup are upserted by id. A legacy document
always becomes a new team, which is made active. Every imported record is
queued for the next sync. A malformed file changes nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := requireOwner()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		a, err := local(cmd.Context())
		if err != nil {
			return err
		}

		res, err := a.backup.ImportDocument(cmd.Context(), owner, data)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s backup\n", ui.RenderPass("Imported"), res.Shape)
		fmt.Println(ui.Field("Teams added", res.TeamsAdded))
		fmt.Println(ui.Field("Teams updated", res.TeamsUpdated))
		fmt.Println(ui.Field("Members", res.Members))
		if res.ActiveTeamID != "" {
			fmt.Println(ui.Field("Active team", res.ActiveTeamID))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
