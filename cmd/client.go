package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/sprt/client"
	"github.com/luma/sprt/internal/env"
)

var ClientCmd = &cobra.Command{
	Use:   "client <addr> <cookieFile>",
	Short: "Run an SPRT application interactively",
	Long: `Run an SPRT application interactively

The session's attributes are loaded from cookieFile before the session starts
and written back to it when the session ends.

Usage
	sprt client localhost:7363 cookies.txt
`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		addr, cookieFile := args[0], args[1]

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		log, err := env.MakeLogger("warn")
		if err != nil {
			return err
		}
		defer log.Sync()

		cookies, err := client.LoadCookies(cookieFile)
		if err != nil {
			return err
		}

		conn, err := client.Dial(ctx, addr, log)
		if err != nil {
			return err
		}

		defer func() {
			if serr := client.SaveCookies(cookieFile, conn.Attributes()); serr != nil {
				log.Error("Couldn't persist cookies", zap.Error(serr))
				err = multierr.Append(err, serr)
			}

			err = multierr.Append(err, conn.Close())
		}()

		conn.SetAttributes(cookies)

		console := client.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err := console.Run(ctx, conn); err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		return nil
	},
}
