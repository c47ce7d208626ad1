// Multicontroller bridges Zehnder multicontrollers on ESP RainMaker to a
// local hub API.
//
// It logs in to the RainMaker cloud, polls every node of the account and
// derives climate, sensor, binary_sensor, switch and number entities from
// the reported parameters. "serve" exposes them over REST and WebSocket and
// advertises the bridge over mDNS; the other commands read or change them
// directly from the terminal.
//
// Usage:
//
//	multicontroller [command] [flags]
//
// See 'multicontroller --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/multicontroller/internal/logging"
	"github.com/muurk/multicontroller/internal/version"
)

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	settingsPath string
	entryFlag    string
	jsonOutput   bool
)

var rootCmd = &cobra.Command{
	Use:   "multicontroller",
	Short: "Zehnder Multicontroller RainMaker bridge",
	Long: `A bridge between the ESP RainMaker cloud and a local home automation hub
for Zehnder multicontrollers.

Add an account with 'login', then run 'serve' to expose its entities over
REST and WebSocket, or use 'entities', 'set', 'climate' and 'watch' to work
with them from the terminal.

Passwords are never stored. Provide them with MULTICONTROLLER_RAINMAKER_PASSWORD
or the --password flag on every run.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging(cmd)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&settingsPath, "config", "", "Settings file (default: settings.yaml in the config directory)")
	pf.StringVar(&entryFlag, "entry", "", "Entry id to use when more than one account is configured")
	pf.BoolVar(&jsonOutput, "json", false, "Print machine readable JSON")
	pf.String("log-level", "", "Log level (debug, info, warn, error); empty disables logging")
	pf.String("password", "", "RainMaker password (prefer MULTICONTROLLER_RAINMAKER_PASSWORD)")
	pf.String("host", "", "RainMaker API host")
	pf.Duration("request-timeout", 0, "RainMaker request timeout")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPrinter(cmd)
		if p.JSON() {
			return p.PrintJSON(version.Get())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "multicontroller %s\n", version.Full())
		return nil
	},
}
