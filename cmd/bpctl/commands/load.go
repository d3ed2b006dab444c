package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var loadFile string
var loadTimeoutMS int

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Dequeue the next wire-ready bundle",
	Long: `Call the channel's load operation and write the resulting
wire-encoded bundle to --file (or stdout): a pending ACS record if one
is due, a due retransmit from the active table, or a fresh bundle.`,
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringVarP(&loadFile, "file", "f", "", "output file (default: stdout)")
	loadCmd.Flags().IntVar(&loadTimeoutMS, "timeout-ms", 0, "dequeue timeout in milliseconds (0 = default)")
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	ch, err := openChannel(ctx, cfg)
	if err != nil {
		return err
	}

	buf, status, flags := ch.Load(ctx, nil, loadTimeoutMS)
	fmt.Fprintf(cmd.ErrOrStderr(), "status=%s flags=%#x bytes=%d\n", status, uint32(flags), len(buf))
	if err := status.Err(); err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	return writeOutput(loadFile, buf)
}
