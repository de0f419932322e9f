package main

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state for this device",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	records, err := app.Engine.GetAll()
	if err != nil {
		return err
	}
	backups, err := app.Backups.List()
	if err != nil {
		return err
	}

	online := app.Monitor.Online()

	if jsonOutput {
		printJSON(map[string]interface{}{
			"status":        app.Engine.Status().String(),
			"online":        online,
			"authenticated": app.Authenticated(),
			"device":        cfg.Sync.DeviceName,
			"records":       len(records),
			"queued":        app.Engine.QueueLen(),
			"dropped":       app.Engine.DroppedMutations(),
			"backups":       len(backups),
		})
		return nil
	}

	printInfo("Device:        %s", cfg.Sync.DeviceName)
	printInfo("Status:        %s", app.Engine.Status())
	printInfo("Online:        %t", online)
	printInfo("Authenticated: %t", app.Authenticated())
	printInfo("Events:        %d", len(records))
	printInfo("Queued edits:  %d", app.Engine.QueueLen())
	if dropped := app.Engine.DroppedMutations(); dropped > 0 {
		printError("Dropped edits: %d (exceeded retry limit)", dropped)
	}
	printInfo("Backups:       %d", len(backups))
	return nil
}
