package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var storeFile string
var storeTimeoutMS int

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Enqueue a payload for transmission",
	Long: `Read a payload from --file (or stdin) and hand it to the
channel's bundle store, serializing a BP v6 header per the channel's
configured attributes.`,
	RunE: runStore,
}

func init() {
	storeCmd.Flags().StringVarP(&storeFile, "file", "f", "", "payload file (default: stdin)")
	storeCmd.Flags().IntVar(&storeTimeoutMS, "timeout-ms", 0, "enqueue timeout in milliseconds (0 = default)")
}

func runStore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	ch, err := openChannel(ctx, cfg)
	if err != nil {
		return err
	}

	payload, err := readInput(storeFile)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	status, flags := ch.Store(ctx, payload, storeTimeoutMS)
	fmt.Printf("status=%s flags=%#x\n", status, uint32(flags))
	if err := status.Err(); err != nil {
		return fmt.Errorf("store failed: %w", err)
	}
	return nil
}
