package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"clipforge/internal/fileutil"
	"clipforge/internal/manager"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var (
		asJSON  bool
		force   bool
		pattern string
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove sessions past the retention policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if force {
				// Terminal sessions lose their grace period.
				cfg.Retention.CompletedGraceHours = 0
			}

			return ctx.withManager(cmd, func(cmdCtx context.Context, mgr *manager.Manager) error {
				report, err := mgr.CleanupExpired(cmdCtx)
				if err != nil {
					return err
				}

				var patternErrs []error
				if pattern != "" {
					removed, errs := fileutil.CleanupPattern(cfg.Paths.TempDir, pattern, cfg.AllowedCleanupRoots())
					report.FilesRemoved += removed
					patternErrs = errs
				}

				if asJSON {
					return writeJSON(cmd, report)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Examined %d sessions in %s: removed %d, skipped %d, failed %d, files removed %d\n",
					report.Examined, report.Duration, report.Removed, report.Skipped, report.Failed, report.FilesRemoved)
				for _, message := range report.Errors {
					fmt.Fprintf(out, "  error: %s\n", message)
				}
				if report.Truncated {
					fmt.Fprintln(out, "  (error list truncated)")
				}
				for _, err := range patternErrs {
					fmt.Fprintf(out, "  pattern sweep: %v\n", err)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a summary line")
	cmd.Flags().BoolVar(&force, "force", false, "Remove terminal sessions immediately, ignoring the grace period")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Also sweep files matching this glob from the temp directory")
	return cmd
}
