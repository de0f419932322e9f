package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an API token for this device",
	Long: `Login verifies the token against the Gatherly API and stores it for
future runs. Generate a token in the Gatherly app under Settings > Devices.`,
	Example: `  gathersync login
  gathersync login --token gly_xxxxxxxx`,
	RunE: runLogin,
}

var loginToken string

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVarP(&loginToken, "token", "t", "",
		"API token (will prompt if not provided)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if loginToken == "" {
		var err error
		loginToken, err = promptSecret("API token: ")
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
	}
	loginToken = strings.TrimSpace(loginToken)

	if err := app.Login(ctx, loginToken); err != nil {
		if jsonOutput {
			printJSON(map[string]interface{}{"success": false, "error": err.Error()})
		} else {
			printError("Login failed: %v", err)
		}
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "device": cfg.Sync.DeviceName})
	} else {
		printSuccess("Logged in; this device syncs as %q", cfg.Sync.DeviceName)
	}
	return nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored API token",
	Long:  `Logout removes the token from this device. Local event data is kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.Logout(); err != nil {
			return err
		}
		if jsonOutput {
			printJSON(map[string]interface{}{"success": true})
		} else {
			printSuccess("Logged out; local data kept")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	// Read without echo.
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", err
	}
	return string(secret), nil
}
