package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gatherly/gathersync/internal/client"
	"github.com/gatherly/gathersync/internal/config"
	"github.com/gatherly/gathersync/internal/events"
)

var (
	cfgFile    string
	jsonOutput bool
	verbose    bool

	cfg    *config.Config
	logger *events.Logger
	app    *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "gathersync",
	Short: "Offline-first sync for Gatherly events",
	Long: `Gathersync keeps a device-local copy of your Gatherly events and
reconciles it with the cloud whenever the network allows. Edits always land
locally first; synchronization happens in the background.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initApp()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeApp()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Config file (default searches ., ~/.config/gathersync, ~/.gathersync)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Emit machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
}

func initApp() error {
	var err error
	cfg, err = config.NewLoader(cfgFile).Load()
	if err != nil {
		return err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	if cfg.Log.File != "" {
		logger, err = events.NewFile(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
		if err != nil {
			return err
		}
	} else {
		logger = events.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	}

	app, err = client.New(cfg, logger)
	if err != nil {
		return err
	}

	// One probe so commands know whether the cloud is reachable. Commands
	// still work offline; mutations just stay queued locally.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	app.CheckConnectivity(ctx)

	return nil
}

func closeApp() error {
	if app == nil {
		return nil
	}
	return app.Close()
}

// Output helpers. Human output goes to stdout with a bit of color; --json
// swaps it for a single machine-readable document.

func printSuccess(format string, args ...interface{}) {
	fmt.Println(color.GreenString("✓ ") + fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

func printError(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, color.RedString("✗ ")+fmt.Sprintf(format, args...))
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		printError("encode output: %v", err)
		return
	}
	fmt.Println(string(data))
}
