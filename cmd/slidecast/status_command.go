package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"slidecast/internal/api"
	"slidecast/internal/daemonctl"
	"slidecast/internal/preflight"
)

type statusReport struct {
	Daemon    api.DaemonStatus   `json:"daemon"`
	Preflight []preflight.Result `json:"preflight"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue, dependency and preflight status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			report := statusReport{Daemon: snapshot, Preflight: preflight.RunAll(cmd.Context(), cfg)}
			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			renderStatusReport(out, report, shouldColorize(out))
			return nil
		},
	}
}

func renderStatusReport(out io.Writer, report statusReport, colorize bool) {
	d := report.Daemon
	lines := renderSectionHeader("Daemon", colorize)
	if d.Running {
		msg := fmt.Sprintf("pid %d", d.PID)
		if d.APIBind != "" {
			msg += ", api " + d.APIBind
		}
		lines = append(lines, renderStatusLine("Daemon", statusOK, msg, colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "not running", colorize))
	}
	if d.InboxDir != "" {
		lines = append(lines, renderStatusLine("Inbox", statusInfo, d.InboxDir, colorize))
	}
	lines = append(lines, renderStatusLine("Database", statusInfo, d.DatabasePath, colorize))
	if d.Workflow.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, d.Workflow.LastError, colorize))
	}
	for _, h := range d.Workflow.StageHealth {
		kind := statusOK
		if !h.Ready {
			kind = statusError
		}
		lines = append(lines, renderStatusLine("Stage "+h.Name, kind, h.Detail, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
	for _, dep := range d.Dependencies {
		kind := statusOK
		msg := dep.Command
		if !dep.Available {
			kind = statusError
			if dep.Optional {
				kind = statusWarn
			}
			msg = strings.TrimSpace(dep.Detail)
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, msg, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Preflight", colorize)...)
	for _, r := range report.Preflight {
		kind := statusOK
		if !r.Passed {
			kind = statusWarn
			if r.Required {
				kind = statusError
			}
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}

	fmt.Fprintln(out, strings.Join(lines, "\n"))

	rows := buildStatsRows(d.Workflow.QueueStats)
	fmt.Fprintln(out)
	if len(rows) == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return
	}
	fmt.Fprint(out, renderTable([]string{"Status", "Jobs"}, rows, []columnAlignment{alignLeft, alignRight}, colorize))
}
