// Package gen holds commands that write out files describing sprt itself
package gen

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate documentation for sprt",
	Args:  cobra.NoArgs,
}

func init() {
	RootCmd.AddCommand(ManPagesCmd)
}
