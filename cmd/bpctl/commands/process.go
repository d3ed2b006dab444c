package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groundstation/bplib/pkg/bpstatus"
)

var processFile string
var processTimeoutMS int

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process a received bundle",
	Long: `Read a wire-encoded bundle from --file (or stdin) and hand it
to the channel's process operation: an expired bundle is dropped, an
ACS record acknowledges active-table entries, and a payload-bearing
bundle is queued for accept.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processFile, "file", "f", "", "bundle file (default: stdin)")
	processCmd.Flags().IntVar(&processTimeoutMS, "timeout-ms", 0, "enqueue timeout in milliseconds (0 = default)")
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	ch, err := openChannel(ctx, cfg)
	if err != nil {
		return err
	}

	data, err := readInput(processFile)
	if err != nil {
		return fmt.Errorf("read bundle: %w", err)
	}

	status, flags := ch.Process(ctx, data, processTimeoutMS)
	fmt.Printf("status=%s flags=%#x\n", status, uint32(flags))

	switch status {
	case bpstatus.Success, bpstatus.PendingAcknowledgment, bpstatus.PendingCustodyTransfer:
		return nil
	default:
		return fmt.Errorf("process failed: %s", status)
	}
}
