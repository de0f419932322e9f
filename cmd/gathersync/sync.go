package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/gatherly/gathersync/internal/models"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile local events with the cloud",
	Long: `Sync pulls remote changes into the local store, merging conflicts
last-write-wins, then pushes everything the cloud is missing. Queued offline
mutations are delivered first.`,
	Example: `  gathersync sync
  gathersync sync --pull-only`,
	RunE: runSync,
}

var (
	syncPullOnly bool
	syncPushOnly bool
)

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&syncPullOnly, "pull-only", false,
		"Only merge remote changes in")
	syncCmd.Flags().BoolVar(&syncPushOnly, "push-only", false,
		"Only upload local changes")
	syncCmd.MarkFlagsMutuallyExclusive("pull-only", "push-only")
}

func runSync(cmd *cobra.Command, args []string) error {
	if !app.Authenticated() {
		return models.ErrNotAuthenticated
	}
	if !app.Monitor.Online() {
		return fmt.Errorf("cloud is not reachable; edits stay queued locally")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	queued, _ := app.Engine.DrainQueue(ctx)

	var err error
	switch {
	case syncPullOnly:
		err = app.Engine.PullFromCloud(ctx)
	case syncPushOnly:
		err = app.Engine.PushAllToCloud(ctx)
	default:
		err = app.Engine.SyncAll(ctx)
	}
	if err != nil {
		return err
	}

	records, err := app.Engine.GetAll()
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"status":          app.Engine.Status().String(),
			"records":         len(records),
			"queued_delivered": queued,
		})
		return nil
	}

	if queued > 0 {
		printInfo("Delivered %d queued change(s)", queued)
	}
	printSuccess("Sync complete: %d event(s), status %s", len(records), app.Engine.Status())
	return nil
}
