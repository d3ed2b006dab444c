package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var acceptFile string
var acceptTimeoutMS int

var acceptCmd = &cobra.Command{
	Use:   "accept",
	Short: "Dequeue one delivered payload",
	Long:  `Call the channel's accept operation and write the delivered payload to --file (or stdout).`,
	RunE:  runAccept,
}

func init() {
	acceptCmd.Flags().StringVarP(&acceptFile, "file", "f", "", "output file (default: stdout)")
	acceptCmd.Flags().IntVar(&acceptTimeoutMS, "timeout-ms", 0, "dequeue timeout in milliseconds (0 = default)")
}

func runAccept(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	ch, err := openChannel(ctx, cfg)
	if err != nil {
		return err
	}

	payload, status := ch.Accept(ctx, nil, acceptTimeoutMS)
	fmt.Fprintf(cmd.ErrOrStderr(), "status=%s bytes=%d\n", status, len(payload))
	if err := status.Err(); err != nil {
		return fmt.Errorf("accept failed: %w", err)
	}
	return writeOutput(acceptFile, payload)
}
