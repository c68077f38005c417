package gen

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/luma/sprt/internal/meta"
)

const manSection = "1"

var manDir string

var ManPagesCmd = &cobra.Command{
	Use:   "man",
	Short: "Write a man page for every sprt command",
	Long: `Write a man page for every sprt command, one file per command.

Usage
	sprt gen man --dir /usr/local/share/man/man1
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return WriteManPages(cmd.Root(), manDir)
	},
}

// WriteManPages writes the pages for root and all of its subcommands into dir,
// creating it if needed
func WriteManPages(root *cobra.Command, dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	header := &doc.GenManHeader{
		Title:   "SPRT",
		Section: manSection,
		Manual:  "SPRT Manual",
		Source:  "sprt " + meta.GetInfo().DisplayVersion(),
	}

	root.DisableAutoGenTag = true

	if err := doc.GenManTree(root, header, dir); err != nil {
		return fmt.Errorf("failed to write man pages to %s: %w", dir, err)
	}

	fmt.Fprintln(root.OutOrStdout(), "Wrote man pages to", dir)
	return nil
}

func init() {
	flags := ManPagesCmd.Flags()
	flags.StringVar(&manDir, "dir", "man", "Directory to write the man pages to")

	if err := flags.SetAnnotation("dir", cobra.BashCompSubdirsInDir, []string{}); err != nil {
		panic(err)
	}
}
