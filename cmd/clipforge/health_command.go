package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"clipforge/internal/manager"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var deep bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Report session store health",
		Long: "Reports backend reachability and registry counters. With --deep the\n" +
			"command also runs a synthetic session through the full lifecycle to\n" +
			"prove the write path end to end.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(cmdCtx context.Context, mgr *manager.Manager) error {
				health := mgr.Health(cmdCtx)

				var probe *manager.ProbeReport
				var probeErr error
				if deep {
					report, err := mgr.ForceHealthCheck(cmdCtx)
					probe = &report
					probeErr = err
				}

				if asJSON {
					payload := struct {
						manager.Health
						Probe *manager.ProbeReport `json:"probe,omitempty"`
					}{health, probe}
					if err := writeJSON(cmd, payload); err != nil {
						return err
					}
					return probeErr
				}

				renderHealth(cmd, health, probe)
				return probeErr
			})
		},
	}

	cmd.Flags().BoolVar(&deep, "deep", false, "Run a synthetic session through the full lifecycle")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of formatted output")
	return cmd
}

func renderHealth(cmd *cobra.Command, health manager.Health, probe *manager.ProbeReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Session store health", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", statusKindForHealth(health.Status), health.Status, colorize))
	if health.BackendReachable {
		fmt.Fprintln(out, renderStatusLine("Backend", statusOK, "reachable", colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Backend", statusError, health.BackendError, colorize))
	}
	if health.FallbackActive {
		fmt.Fprintln(out, renderStatusLine("Fallback", statusWarn, "in-memory fallback engaged, sessions are volatile", colorize))
	}
	fmt.Fprintf(out, "  %-22s %d known, %d active\n", "Sessions:", health.RegistrySessions, health.ActiveSessions)
	fmt.Fprintf(out, "  %-22s %s\n", "Migration done:", yesNo(health.MigrationCompleted))
	for _, violation := range health.Violations {
		fmt.Fprintln(out, renderStatusLine("Violation", statusWarn, violation, colorize))
	}

	if db := health.Database; db != nil {
		for _, line := range renderSectionHeader("Database", colorize) {
			fmt.Fprintln(out, line)
		}
		fmt.Fprintf(out, "  %-22s %s\n", "Path:", db.DBPath)
		fmt.Fprintf(out, "  %-22s exists=%s readable=%s table=%s\n", "Checks:",
			yesNo(db.DatabaseExists), yesNo(db.DatabaseReadable), yesNo(db.TableExists))
		fmt.Fprintf(out, "  %-22s %d\n", "Stored sessions:", db.SessionCount)
		if db.Error != "" {
			fmt.Fprintln(out, renderStatusLine("Database error", statusError, db.Error, colorize))
		}
	}

	if probe != nil {
		for _, line := range renderSectionHeader("Deep check", colorize) {
			fmt.Fprintln(out, line)
		}
		rows := make([][]string, 0, len(probe.Steps))
		for _, step := range probe.Steps {
			result := "ok"
			if step.Error != "" {
				result = step.Error
			}
			rows = append(rows, []string{
				step.Operation,
				fmt.Sprintf("%.1f ms", step.Millis),
				result,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"OPERATION", "DURATION", "RESULT"},
			rows,
			[]cellAlign{cellLeft, cellRight, cellLeft},
		))
		if probe.Passed {
			fmt.Fprintln(out, renderStatusLine("Probe", statusOK, fmt.Sprintf("passed in %.1f ms", probe.Millis), colorize))
		} else {
			fmt.Fprintln(out, renderStatusLine("Probe", statusError, "failed", colorize))
		}
	}
}
