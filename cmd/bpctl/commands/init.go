package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groundstation/bplib/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a sample bplib configuration file with one memory-backed
channel and every ambient setting at its default.

By default, the file is created at $XDG_CONFIG_HOME/bplib/config.yaml.
Use --config to pick a different path.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Channels = []config.ChannelConfig{
		{
			Local:      "ipn:1.1",
			Remote:     "ipn:2.1",
			Attributes: config.DefaultAttributes(),
		},
	}

	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the channel list and attributes to match your link")
	fmt.Printf("  2. Run a channel directly: bpctl store --local ipn:1.1 --remote ipn:2.1\n")
	fmt.Printf("  3. Or run every configured channel: bpctl serve --config %s\n", path)
	return nil
}
