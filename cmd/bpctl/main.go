// Command bpctl drives a single bplib channel from the command line: it
// opens the bundle/payload/ACS stores a config.ChannelConfig names,
// performs one store/load/process/accept/flush operation, and exits.
// A long-running "serve" mode keeps every configured channel open,
// sweeps pending ACS on a timer, and exports Prometheus metrics.
package main

import (
	"fmt"
	"os"

	"github.com/groundstation/bplib/cmd/bpctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
