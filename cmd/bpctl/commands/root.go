// Package commands implements the bpctl CLI commands.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/groundstation/bplib/internal/logger"
	"github.com/groundstation/bplib/pkg/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
	local   string
	remote  string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "bpctl",
	Short: "bpctl - Bundle Protocol custody engine control",
	Long: `bpctl drives a bplib channel from the command line: store a
payload, load the next wire-ready bundle, process a received bundle,
accept a delivered payload, flush an active table, or run every
configured channel as a long-lived daemon with a Prometheus /metrics
endpoint.

Use "bpctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/bplib/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&local, "local", "", "local EID of the channel to operate on (default: first configured channel)")
	rootCmd.PersistentFlags().StringVar(&remote, "remote", "", "remote EID of the channel to operate on (default: first configured channel)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(acceptCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(flushCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

// loadConfig loads and validates configuration from the --config flag
// (or its default search path), falling back to an all-defaults Config
// only when no file is found anywhere on the search path.
func loadConfig() (*config.Config, error) {
	return config.Load(GetConfigFile())
}

func initLogger() error {
	return logger.Init(logger.Config{
		Level:  os.Getenv("BPLIB_LOGGING_LEVEL"),
		Format: os.Getenv("BPLIB_LOGGING_FORMAT"),
		Output: os.Getenv("BPLIB_LOGGING_OUTPUT"),
	})
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
