package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"line-patcher/internal/models"
)

func (a *app) newShowCmd() *cobra.Command {
	var req models.ReadFileRequest

	cmd := &cobra.Command{
		Use:   "show <file>",
		Short: "Print numbered lines of a file to check anchors before patching",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(true); err != nil {
				return err
			}
			svc, err := a.newService()
			if err != nil {
				return err
			}
			req.Name = args[0]
			resp, errDetail := svc.ReadFile(req)
			if errDetail != nil {
				return errDetail
			}

			out := cmd.OutOrStdout()
			width := len(fmt.Sprint(resp.EndLine))
			for _, l := range resp.Lines {
				marker := " "
				if req.Around > 0 && l.Number == req.Around {
					marker = ">"
				}
				fmt.Fprintf(out, "%s%*d: %s\n", marker, width, l.Number, l.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&req.Around, "around", 0, "centre the window on this line")
	cmd.Flags().IntVar(&req.Context, "context", 0, "lines shown on each side of --around (default 5)")
	cmd.Flags().IntVar(&req.StartLine, "start", 0, "first line to show")
	cmd.Flags().IntVar(&req.EndLine, "end", 0, "last line to show")
	cmd.MarkFlagsMutuallyExclusive("around", "start")
	cmd.MarkFlagsMutuallyExclusive("around", "end")
	return cmd
}
