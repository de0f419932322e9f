package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Purge all local event data",
	Long: `Reset permanently deletes every local record, tombstones included.
Cloud data is untouched; the next sync re-downloads it. A safety backup is
taken first.`,
	RunE: runReset,
}

var resetForce bool

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVar(&resetForce, "force", false,
		"Skip the confirmation check")
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetForce {
		return fmt.Errorf("reset permanently purges local data; re-run with --force")
	}

	if err := app.Engine.ResetLocal(); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"reset": true})
		return nil
	}
	printSuccess("Local data purged; a safety backup was taken first")
	return nil
}
