package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"clipforge/internal/manager"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "migrate [legacy-dir...]",
		Short: "Import legacy flat-file sessions into the event log",
		Long: "Scans the given directories (or migration.legacy_dirs from the\n" +
			"configuration) for legacy JSON session files and imports them as\n" +
			"event-sourced sessions. Directories that imported cleanly are marked\n" +
			"and skipped on later runs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(cmdCtx context.Context, mgr *manager.Manager) error {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				dirs := args
				if len(dirs) == 0 {
					dirs = cfg.Migration.LegacyDirs
				}
				if len(dirs) == 0 {
					return fmt.Errorf("no legacy directories given; pass paths or set migration.legacy_dirs")
				}

				report, err := mgr.MigrateLegacy(cmdCtx, dirs)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, report)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Scanned %d legacy files: migrated %d, skipped %d, failed %d\n",
					report.Scanned, report.Migrated, report.Skipped, report.Failed)
				for _, message := range report.Errors {
					fmt.Fprintf(out, "  error: %s\n", message)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a summary line")
	return cmd
}
