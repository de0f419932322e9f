package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gatherly/gathersync/internal/models"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List events stored on this device",
	RunE:  runList,
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an event",
	Long: `Create writes the event locally and returns immediately; the upload
happens in the background, or after the next sync when offline.`,
	Example: `  gathersync create --name "Team dinner" --kind invite --date 2026-10-03
  gathersync create --name "Hiking weekend" --kind poll --from 2026-10-10 --to 2026-10-25`,
	RunE: runCreate,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <event-id>",
	Short: "Delete an event",
	Long: `Delete tombstones the event so the removal reaches every device.
Deleting an already-deleted event is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

var (
	createName string
	createKind string
	createDate string
	createFrom string
	createTo   string
)

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(deleteCmd)

	createCmd.Flags().StringVarP(&createName, "name", "n", "", "Event name (required)")
	createCmd.Flags().StringVarP(&createKind, "kind", "k", "invite", "Event kind: invite or poll")
	createCmd.Flags().StringVar(&createDate, "date", "", "Date for invite events (YYYY-MM-DD)")
	createCmd.Flags().StringVar(&createFrom, "from", "", "Range start for poll events (YYYY-MM-DD)")
	createCmd.Flags().StringVar(&createTo, "to", "", "Range end for poll events (YYYY-MM-DD)")
	_ = createCmd.MarkFlagRequired("name")
}

func runList(cmd *cobra.Command, args []string) error {
	records, err := app.Engine.GetAll()
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(records)
		return nil
	}

	if len(records) == 0 {
		printInfo("No events. Create one with 'gathersync create'.")
		return nil
	}

	for _, rec := range records {
		when := rec.Date
		if rec.Kind == models.KindPoll {
			when = fmt.Sprintf("%s .. %s", rec.DateFrom, rec.DateTo)
		}
		printInfo("%s  %-7s %-30s %s  (%d participant(s))",
			rec.ID, rec.Kind, rec.Name, when, len(rec.LiveParticipants()))
	}
	return nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	record := &models.Record{
		Name:     createName,
		Kind:     models.EventKind(createKind),
		Date:     createDate,
		DateFrom: createFrom,
		DateTo:   createTo,
	}

	stored, err := app.Engine.CreateRecord(record)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(stored)
		return nil
	}

	printSuccess("Created %q (%s)", stored.Name, stored.ID)
	if !app.Monitor.Online() {
		printInfo("Offline: the event is saved locally and uploads on the next sync.")
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	id := args[0]

	if err := app.Engine.DeleteRecord(id); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"deleted": id})
		return nil
	}
	printSuccess("Deleted %s", id)
	return nil
}
