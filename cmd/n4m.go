package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/luma/sprt/client"
	"github.com/luma/sprt/internal/env"
	"github.com/luma/sprt/n4m"
)

var queryTimeout time.Duration

func init() {
	N4MCmd.Flags().DurationVar(&queryTimeout, "timeout", client.DefaultQueryTimeout, "How long to wait for an answer")
}

var N4MCmd = &cobra.Command{
	Use:   "n4m <addr> <business>",
	Short: "Ask an N4M server how often its applications have run",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := env.MakeLogger("warn")
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
		defer cancel()

		result, err := client.Query(ctx, args[0], args[1], log)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		if result.ErrorCode != n4m.NoError {
			fmt.Fprintln(out, "Non-zero error code!")
		}

		if result.IDMismatch {
			fmt.Fprintln(out, "Non-matching ID")
		}

		fmt.Fprintln(out, result.Response)
		return nil
	},
}
