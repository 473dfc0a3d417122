package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"line-patcher/internal/directives"
	"line-patcher/internal/models"
)

var errDirectivesFailed = errors.New("some directives failed")

func (a *app) newApplyCmd() *cobra.Command {
	var dryRun, strict bool

	cmd := &cobra.Command{
		Use:   "apply <plan.yaml>",
		Short: "Apply a patch plan to its target file",
		Long: `Apply loads a YAML or JSON plan, applies its directives to the target
file relative to --dir and prints a unified diff with one line per directive.
The command exits non-zero if any directive failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runApply(cmd, args[0], dryRun, strict)
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "show the result without writing the file")
	cmd.Flags().BoolVar(&strict, "strict", false, "reject the whole plan if any directive fails")
	return cmd
}

func (a *app) runApply(cmd *cobra.Command, planPath string, dryRun, strict bool) error {
	if err := a.setup(true); err != nil {
		return err
	}
	plan, err := directives.Load(planPath)
	if err != nil {
		return err
	}
	svc, err := a.newService()
	if err != nil {
		return err
	}

	req := plan.Request(dryRun)
	req.Strict = req.Strict || strict
	a.logger.Debug("Applying plan",
		zap.String("plan", planPath),
		zap.String("target", req.Name),
		zap.Int("directives", len(req.Directives)),
		zap.Bool("strict", req.Strict),
		zap.Bool("dry_run", req.DryRun))

	out := cmd.OutOrStdout()
	resp, errDetail := svc.PatchFile(cmd.Context(), req)
	if errDetail != nil {
		if d, ok := errDetail.Data.(map[string]interface{}); ok {
			if report, ok := d["report"].([]models.DirectiveOutcome); ok {
				printOutcomes(out, report)
			}
		}
		return errDetail
	}

	if resp.Diff != "" {
		fmt.Fprint(out, resp.Diff)
	}
	printOutcomes(out, resp.Outcomes)

	state := "written"
	switch {
	case req.DryRun:
		state = "dry run, not written"
	case !resp.Written:
		state = "unchanged"
	}
	fmt.Fprintf(out, "%s: %d applied, %d skipped, %d failed; %d -> %d lines (%s)\n",
		resp.Name, resp.Applied, resp.Skipped, resp.Failed, resp.OriginalTotalLines, resp.NewTotalLines, state)

	if resp.Failed > 0 {
		return errDirectivesFailed
	}
	return nil
}

func printOutcomes(w io.Writer, outcomes []models.DirectiveOutcome) {
	for _, o := range outcomes {
		line := fmt.Sprintf("  #%d %s@%d: %s", o.Index+1, o.Action, o.Line, o.Status)
		if o.Reason != "" {
			line += " (" + o.Reason + ")"
		}
		fmt.Fprintln(w, line)
	}
}
