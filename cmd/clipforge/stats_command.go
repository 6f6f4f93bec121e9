package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"clipforge/internal/manager"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate session statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(cmdCtx context.Context, mgr *manager.Manager) error {
				stats, err := mgr.Statistics(cmdCtx)
				if err != nil {
					return err
				}
				status, violations := mgr.PerformanceStatus(stats)

				if asJSON {
					return writeJSON(cmd, struct {
						manager.Statistics
						PerformanceStatus string   `json:"performance_status"`
						Violations        []string `json:"violations,omitempty"`
					}{stats, status, violations})
				}

				renderStats(cmd, stats, status, violations)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of formatted output")
	return cmd
}

func renderStats(cmd *cobra.Command, stats manager.Statistics, status string, violations []string) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Session statistics", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "  %-22s %s\n", "Total sessions:", humanize.Comma(int64(stats.Total)))
	fmt.Fprintf(out, "  %-22s %s\n", "Active sessions:", humanize.Comma(int64(stats.Active)))
	fmt.Fprintf(out, "  %-22s %s\n", "Users:", humanize.Comma(int64(len(stats.PerUser))))
	fmt.Fprintf(out, "  %-22s %s / hour, %s / day\n", "Throughput:",
		humanize.Comma(int64(stats.ThroughputLastHour)), humanize.Comma(int64(stats.ThroughputLastDay)))
	fmt.Fprintf(out, "  %-22s %s\n", "Backend:", stats.BackendDriver)
	fmt.Fprintf(out, "  %-22s %s\n", "Fallback active:", yesNo(stats.FallbackActive))
	fmt.Fprintf(out, "  %-22s %s\n", "Average progress:", formatPercent(stats.AverageProgress))
	fmt.Fprintf(out, "  %-22s %s\n", "Avg completion:", formatSeconds(stats.AvgCompletionSeconds))
	fmt.Fprintf(out, "  %-22s %s\n", "Error rate:", formatPercent(stats.ErrorRate))
	fmt.Fprintf(out, "  %-22s %s\n", "Success rate:", formatPercent(stats.SuccessRate))
	if stats.OldestCreatedAt != nil {
		fmt.Fprintf(out, "  %-22s %s\n", "Oldest session:", formatRelativeTime(*stats.OldestCreatedAt))
	}
	if stats.NewestCreatedAt != nil {
		fmt.Fprintf(out, "  %-22s %s\n", "Newest session:", formatRelativeTime(*stats.NewestCreatedAt))
	}

	if len(stats.ByStatus) > 0 {
		rows := make([][]string, 0, len(stats.ByStatus))
		for _, bucket := range sortedKeys(stats.ByStatus) {
			rows = append(rows, []string{bucket, humanize.Comma(int64(stats.ByStatus[bucket]))})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"STATUS", "COUNT"},
			rows,
			[]cellAlign{cellLeft, cellRight},
		))
	}
	if len(stats.ByStage) > 0 {
		rows := make([][]string, 0, len(stats.ByStage))
		for _, stage := range sortedKeys(stats.ByStage) {
			rows = append(rows, []string{stage, humanize.Comma(int64(stats.ByStage[stage]))})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"STAGE", "COUNT"},
			rows,
			[]cellAlign{cellLeft, cellRight},
		))
	}

	kind := statusKindForHealth(status)
	fmt.Fprintln(out, renderStatusLine("Performance", kind, status, colorize))
	for _, violation := range violations {
		fmt.Fprintln(out, renderStatusLine("Violation", statusWarn, violation, colorize))
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
