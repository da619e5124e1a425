package cmd

import (
	"github.com/spf13/cobra"
)

func newBatchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <dir>...",
		Short: "Transcribe every supported image under one or more directories",
		Long: `Process all images (and PDFs) found in the given directories. A failing
image is logged and reported in the statistics; the remaining images are
still processed and the command exits 0.

Examples:
  cyrocr batch demo/input
  cyrocr batch scans/ --recursive --workers 4
  cyrocr batch scans/ --format csv --output results.csv`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOCR(cmd, args)
		},
	}
	addOCRFlags(cmd)
	cmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	return cmd
}
