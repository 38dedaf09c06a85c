package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pdfrag/internal/export"
)

func newOutlineCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outline <file>",
		Short: "Print the detected section outline of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.outline(cmd.OutOrStdout(), args[0])
		},
	}
	addProcessingFlags(cmd)
	return cmd
}

func (a *app) outline(out io.Writer, path string) error {
	_, res, err := a.analyze(path, "")
	if err != nil {
		return err
	}
	if len(res.Sections) == 0 {
		_, err := fmt.Fprintln(out, "no sections detected")
		return err
	}
	_, err = io.WriteString(out, export.OutlineMarkdown(res.Sections))
	return err
}
