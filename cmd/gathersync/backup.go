package main

import (
	"context"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage local snapshots of your event data",
	Long: `Backups are JSON snapshots of the full local record set. One is
taken automatically before every restore and reset; this command manages
manual ones.`,
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Take a snapshot now",
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := app.Engine.Backup(backupReason)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(info)
			return nil
		}
		printSuccess("Backup %s (%d record(s))", info.ID, info.Records)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := app.Backups.List()
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(infos)
			return nil
		}
		if len(infos) == 0 {
			printInfo("No backups yet.")
			return nil
		}
		for _, info := range infos {
			printInfo("%s  %-12s %3d record(s)  %s",
				info.ID, info.Reason, info.Records, info.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <backup-id>",
	Short: "Replace local data with a snapshot",
	Long: `Restore swaps the local record set for the snapshot's contents and
pushes the result to the cloud like any other edit. The pre-restore state is
backed up first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.Engine.RestoreBackup(context.Background(), args[0]); err != nil {
			return err
		}
		if jsonOutput {
			printJSON(map[string]interface{}{"restored": args[0]})
			return nil
		}
		printSuccess("Restored backup %s", args[0])
		return nil
	},
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete <backup-id>",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.Backups.Delete(args[0]); err != nil {
			return err
		}
		printSuccess("Deleted backup %s", args[0])
		return nil
	},
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.Backups.Prune(backupKeep); err != nil {
			return err
		}
		printSuccess("Kept the newest %d backup(s)", backupKeep)
		return nil
	},
}

var (
	backupReason string
	backupKeep   int
)

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupDeleteCmd)
	backupCmd.AddCommand(backupPruneCmd)

	backupCreateCmd.Flags().StringVarP(&backupReason, "reason", "r", "manual",
		"Label stored with the snapshot")
	backupPruneCmd.Flags().IntVar(&backupKeep, "keep", 5,
		"Number of snapshots to keep")
}
