package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clipforge/internal/manager"
	"clipforge/internal/session"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and manage video generation sessions",
	}

	sessionCmd.AddCommand(newSessionListCommand(ctx))
	sessionCmd.AddCommand(newSessionShowCommand(ctx))
	sessionCmd.AddCommand(newSessionStatusCommand(ctx))
	sessionCmd.AddCommand(newSessionDeleteCommand(ctx))

	return sessionCmd
}

func newSessionListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var limit int
	var offset int
	var page int
	var pageSize int
	var allUsers bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(cmdCtx context.Context, mgr *manager.Manager) error {
				status := strings.TrimSpace(statusFilter)
				user := ctx.user()
				out := cmd.OutOrStdout()

				if page > 0 {
					if user == "" {
						return errors.New("--page requires --user")
					}
					result, err := mgr.ListUserSessionsPaginated(cmdCtx, user, page, pageSize, status)
					if err != nil {
						return err
					}
					if asJSON {
						return writeJSON(cmd, result)
					}
					if len(result.Entries) == 0 {
						fmt.Fprintln(out, "No sessions found")
					} else {
						fmt.Fprintln(out, renderSessionTable(result.Entries))
					}
					fmt.Fprintf(out, "Page %d of %d (%d sessions)\n",
						result.Info.Page, result.Info.TotalPages, result.Info.TotalCount)
					return nil
				}

				filter := manager.ListFilter{
					Status: status,
					Limit:  limit,
					Offset: offset,
				}
				var entries []manager.Entry
				var err error
				if allUsers || user == "" {
					entries, err = mgr.ListAllSessions(cmdCtx, filter)
				} else {
					entries, err = mgr.ListUserSessions(cmdCtx, user, filter)
				}
				if err != nil {
					return err
				}

				if asJSON {
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(out, "No sessions found")
					return nil
				}
				fmt.Fprintln(out, renderSessionTable(entries))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (queued, processing, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum sessions to return (0 means all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many sessions")
	cmd.Flags().IntVar(&page, "page", 0, "Show this 1-based page instead of the full list")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Sessions per page (default 20)")
	cmd.Flags().BoolVar(&allUsers, "all", false, "List sessions across all users")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func renderSessionTable(entries []manager.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			shortSessionID(entry.SessionID),
			entry.UserID,
			truncate(entry.Prompt, 42),
			entry.Stage,
			entry.Status,
			formatPercent(entry.Progress),
			formatRelativeTime(entry.CreatedAt),
		})
	}
	return renderTable(
		[]string{"ID", "USER", "PROMPT", "STAGE", "STATUS", "PROGRESS", "CREATED"},
		rows,
		[]cellAlign{cellLeft, cellLeft, cellLeft, cellLeft, cellLeft, cellRight, cellLeft},
	)
}

func newSessionShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show the full state of one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(cmdCtx context.Context, mgr *manager.Manager) error {
				state, err := mgr.GetSession(cmdCtx, ctx.user(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, state)
				}
				renderSessionState(cmd, state)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of formatted output")
	return cmd
}

func renderSessionState(cmd *cobra.Command, state *session.State) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Session "+shortSessionID(state.SessionID), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "  %-22s %s\n", "Session ID:", state.SessionID)
	fmt.Fprintf(out, "  %-22s %s\n", "User:", state.UserID)
	fmt.Fprintf(out, "  %-22s %s\n", "Prompt:", state.Request.Prompt)
	fmt.Fprintf(out, "  %-22s %ds / %s / %s\n", "Request:",
		state.Request.DurationSeconds, state.Request.Style, state.Request.Quality)
	fmt.Fprintf(out, "  %-22s %s (%s)\n", "Stage:", state.CurrentStage, state.CurrentStage.StatusKey())
	fmt.Fprintf(out, "  %-22s %s\n", "Progress:", formatPercent(state.Progress))
	if state.EstimatedCompletion != nil && !state.CurrentStage.Terminal() {
		fmt.Fprintf(out, "  %-22s %s\n", "Estimated done:", formatRelativeTime(*state.EstimatedCompletion))
	}
	fmt.Fprintf(out, "  %-22s %s\n", "Created:", formatTimestamp(state.CreatedAt))
	fmt.Fprintf(out, "  %-22s %s\n", "Updated:", formatTimestamp(state.UpdatedAt))
	fmt.Fprintf(out, "  %-22s %d\n", "Revision:", state.Revision)

	fmt.Fprintf(out, "  %-22s research=%s script=%s assets=%s audio=%s video=%s\n", "Payloads:",
		yesNo(state.ResearchData != nil),
		yesNo(state.Script != nil),
		yesNo(state.Assets != nil),
		yesNo(state.AudioAssets != nil),
		yesNo(state.FinalVideo != nil),
	)
	if state.FinalVideo != nil && state.FinalVideo.VideoFile != "" {
		fmt.Fprintf(out, "  %-22s %s\n", "Final video:", state.FinalVideo.VideoFile)
	}

	if state.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusError, state.ErrorMessage, colorize))
	}
	if len(state.ErrorLog) > 0 {
		fmt.Fprintf(out, "  %-22s %d entries\n", "Error log:", len(state.ErrorLog))
		for _, entry := range state.ErrorLog {
			fmt.Fprintf(out, "    %s\n", entry)
		}
	}
	if len(state.IntermediateFiles) > 0 {
		fmt.Fprintf(out, "  %-22s %d tracked\n", "Intermediate files:", len(state.IntermediateFiles))
	}
	if len(state.Metadata) > 0 {
		fmt.Fprintf(out, "  %-22s %d keys\n", "Metadata:", len(state.Metadata))
	}
}

func newSessionStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show the lightweight status view of one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(cmdCtx context.Context, mgr *manager.Manager) error {
				status, err := mgr.GetSessionStatus(cmdCtx, ctx.user(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "  %-22s %s\n", "Session ID:", status.SessionID)
				fmt.Fprintf(out, "  %-22s %s (%s)\n", "Stage:", status.CurrentStage, status.Status)
				fmt.Fprintf(out, "  %-22s %s\n", "Progress:", formatPercent(status.Progress))
				if status.EstimatedCompletion != nil {
					fmt.Fprintf(out, "  %-22s %s\n", "Estimated done:", formatRelativeTime(*status.EstimatedCompletion))
				}
				fmt.Fprintf(out, "  %-22s %s\n", "Updated:", formatTimestamp(status.UpdatedAt))
				if status.ErrorMessage != "" {
					fmt.Fprintf(out, "  %-22s %s\n", "Last error:", status.ErrorMessage)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of formatted output")
	return cmd
}

func newSessionDeleteCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its tracked intermediate files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(cmdCtx context.Context, mgr *manager.Manager) error {
				id := strings.TrimSpace(args[0])
				if err := mgr.DeleteSession(cmdCtx, ctx.user(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", id)
				return nil
			})
		},
	}
	return cmd
}
