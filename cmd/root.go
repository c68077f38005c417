package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/sprt/cmd/gen"
)

var RootCmd = &cobra.Command{
	Use:   "sprt",
	Short: "SPRT application server and clients",
	Long: `SPRT application server and clients

SPRT runs small text based applications over TCP, keeping each session's state
in attributes the client carries. N4M reports how often they have run.`,
	SilenceUsage: true,
}

func init() {
	RootCmd.AddCommand(StartCmd, ClientCmd, N4MCmd, VersionCmd, gen.RootCmd)
}

// Execute runs the command line, exiting non-zero on failure
func Execute() {
	if err := RootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
