package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groundstation/bplib/internal/cli/prompt"
)

var flushForce bool

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Relinquish every outstanding bundle in the active table",
	Long: `Call the channel's flush operation: every entry in the active
table is relinquished back to the bundle store's free list and counted
as lost. This discards all outstanding custody state for the channel,
so it prompts for confirmation unless --force is given.`,
	RunE: runFlush,
}

func init() {
	flushCmd.Flags().BoolVar(&flushForce, "force", false, "skip the confirmation prompt")
}

func runFlush(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	ch, err := openChannel(ctx, cfg)
	if err != nil {
		return err
	}

	ok, err := prompt.ConfirmWithForce(
		fmt.Sprintf("Flush active table for %s? This relinquishes every outstanding bundle", ch.Route()),
		flushForce,
	)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("aborted")
		return nil
	}

	if err := ch.Flush(ctx); err != nil {
		return fmt.Errorf("flush failed: %w", err)
	}
	fmt.Println("flushed")
	return nil
}
