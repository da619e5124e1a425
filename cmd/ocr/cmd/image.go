package cmd

import (
	"github.com/spf13/cobra"
)

func newImageCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image <file>...",
		Short: "Transcribe the text regions of one or more images",
		Long: `Detect text regions in each image, transcribe every region and write
<stem>_bbox.png to the output directory and <stem>_all_bboxes.csv to the
dump directory.

Supported formats: PNG, JPEG, BMP, TIFF, WebP and PDF (embedded images).

Examples:
  cyrocr image scan.png
  cyrocr image page1.jpg page2.jpg --format json
  cyrocr image scan.png --detector sidecar --dump-ocr`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOCR(cmd, args)
		},
	}
	addOCRFlags(cmd)
	return cmd
}
