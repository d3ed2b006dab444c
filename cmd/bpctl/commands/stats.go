package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print a channel's latched statistics",
	Long:  `Call the channel's latchstats operation and render the counters as a table.`,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	ch, err := openChannel(ctx, cfg)
	if err != nil {
		return err
	}

	snap, err := ch.LatchStats(ctx)
	if err != nil {
		return fmt.Errorf("latchstats: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"counter", "value"})
	table.SetAutoFormatHeaders(true)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, row := range [][2]any{
		{"generated", snap.Generated},
		{"transmitted", snap.Transmitted},
		{"retransmitted", snap.Retransmitted},
		{"delivered", snap.Delivered},
		{"received", snap.Received},
		{"acknowledged", snap.Acknowledged},
		{"lost", snap.Lost},
		{"expired", snap.Expired},
		{"active", snap.Active},
		{"bundles", snap.Bundles},
		{"payloads", snap.Payloads},
		{"records", snap.Records},
	} {
		table.Append([]string{row[0].(string), strconv.FormatUint(row[1].(uint64), 10)})
	}
	table.Render()
	return nil
}
