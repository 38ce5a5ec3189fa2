package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"shortsfactory/internal/config"
	"shortsfactory/internal/daemonrun"
	"shortsfactory/internal/deps"
	"shortsfactory/internal/preflight"
	"shortsfactory/internal/records"
	"shortsfactory/internal/stage"
)

const lastErrorWidth = 60

type statusReport struct {
	DaemonRunning bool                   `json:"daemonRunning"`
	DatabasePath  string                 `json:"databasePath"`
	Counts        map[records.Status]int `json:"counts"`
	QuotaUsed     int                    `json:"quotaUsed"`
	QuotaLimit    int                    `json:"quotaLimit"`
	Records       []*records.Video       `json:"records,omitempty"`
	Failed        []*records.Video       `json:"failed"`
	Jobs          []stage.Health         `json:"jobs"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var listFlag string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show record counts, failed records, and readiness checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			listed, err := parseStatusList(listFlag)
			if err != nil {
				return err
			}
			return ctx.withApp(func(app *daemonrun.App) error {
				report, err := buildStatusReport(cmd.Context(), app.Config, app.Store, listed)
				if err != nil {
					return err
				}
				report.Jobs = app.Registry.Health(cmd.Context())
				return emit(cmd, jsonOutput, report, func(out io.Writer) {
					renderStatus(cmd.Context(), out, app.Config, report)
				})
			})
		},
	}
	addJSONFlag(cmd, &jsonOutput, "status")
	cmd.Flags().StringVar(&listFlag, "list", "", "Also list records in these comma-separated statuses")
	return cmd
}

func parseStatusList(raw string) ([]records.Status, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []records.Status
	for _, part := range strings.Split(raw, ",") {
		status, ok := records.ParseStatus(part)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", strings.TrimSpace(part))
		}
		out = append(out, status)
	}
	return out, nil
}

func buildStatusReport(ctx context.Context, cfg *config.Config, store *records.Store, listed []records.Status) (statusReport, error) {
	report := statusReport{
		DaemonRunning: daemonRunning(cfg),
		DatabasePath:  store.Path(),
		QuotaLimit:    cfg.Publish.MaxDaily,
	}
	var err error
	if report.Counts, err = store.Counts(ctx); err != nil {
		return report, fmt.Errorf("count records: %w", err)
	}
	if report.QuotaUsed, err = store.QuotaCount(ctx, store.Today(time.Now())); err != nil {
		return report, fmt.Errorf("read quota: %w", err)
	}
	if report.Failed, err = store.List(ctx, records.StatusFailed); err != nil {
		return report, fmt.Errorf("list failed records: %w", err)
	}
	if len(listed) > 0 {
		if report.Records, err = store.List(ctx, listed...); err != nil {
			return report, fmt.Errorf("list records: %w", err)
		}
	}
	return report, nil
}

// daemonRunning probes the daemon's instance lock without holding it.
func daemonRunning(cfg *config.Config) bool {
	lock := flock.New(cfg.Paths.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = lock.Unlock()
		return false
	}
	return true
}

func renderStatus(ctx context.Context, out io.Writer, cfg *config.Config, report statusReport) {
	colorize := shouldColorize(out)

	lines := renderSectionHeader("System", colorize)
	if report.DaemonRunning {
		lines = append(lines, renderStatusLine("Daemon", statusOK, "Running", colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusInfo, "Not running", colorize))
	}
	lines = append(lines, renderStatusLine("Database", statusInfo, report.DatabasePath, colorize))
	lines = append(lines, renderStatusLine("Scheduler", statusInfo, yesNo(cfg.Scheduler.Enabled), colorize))
	quotaKind := statusOK
	if report.QuotaUsed >= report.QuotaLimit {
		quotaKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Publish quota", quotaKind, fmt.Sprintf("%d/%d today", report.QuotaUsed, report.QuotaLimit), colorize))
	for _, result := range preflight.RunAll(ctx, cfg) {
		lines = append(lines, checkLine(result, statusWarn, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
	lines = append(lines, dependencyLines(deps.CheckBinaries(deps.Requirements(cfg)), colorize)...)
	if len(report.Jobs) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Jobs", colorize)...)
		for _, health := range report.Jobs {
			lines = append(lines, jobLine(health, colorize))
		}
	}
	lines = append(lines, "")
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}

	fmt.Fprintln(out, renderCounts(report.Counts))
	if len(report.Records) > 0 {
		fmt.Fprintln(out, renderRecords(report.Records))
	}
	if len(report.Failed) == 0 {
		fmt.Fprintln(out, "No failed records")
		return
	}
	fmt.Fprintln(out, renderFailed(report.Failed))
}

func renderCounts(counts map[records.Status]int) string {
	statuses := records.AllStatuses()
	rows := make([][]string, 0, len(statuses))
	for _, status := range statuses {
		rows = append(rows, []string{string(status), strconv.Itoa(counts[status])})
	}
	return renderTable([]string{"Status", "Records"}, rows, []columnAlignment{alignLeft, alignRight})
}

func renderRecords(videos []*records.Video) string {
	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		rows = append(rows, []string{
			v.ID,
			string(v.Status),
			truncateText(v.DisplayTitle(), 40),
			strconv.Itoa(v.Attempts),
			v.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	return renderTable(
		[]string{"ID", "Status", "Title", "Attempts", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func renderFailed(videos []*records.Video) string {
	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		rows = append(rows, []string{
			v.ID,
			string(v.FailedFrom),
			strconv.Itoa(v.Attempts),
			truncateText(v.LastError, lastErrorWidth),
		})
	}
	return renderTable(
		[]string{"Failed ID", "Failed From", "Attempts", "Last Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func truncateText(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
