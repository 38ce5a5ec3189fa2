package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"shortsfactory/internal/config"
	"shortsfactory/internal/daemonrun"
	"shortsfactory/internal/pipeline"
	"shortsfactory/internal/runner"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one full pipeline cycle and wait for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(app *daemonrun.App) error {
				result, err := app.Coordinator.RunCycle(cmd.Context(), pipeline.TriggerManual)
				if err != nil {
					return err
				}
				err = emit(cmd, jsonOutput, result, func(out io.Writer) {
					fmt.Fprintf(out, "Cycle %s finished in %s\n", result.RunToken, result.Duration)
					ordered := make([]runner.Result, 0, len(result.Results))
					for _, name := range app.Registry.Names() {
						if res, ok := result.Results[name]; ok {
							ordered = append(ordered, res)
						}
					}
					fmt.Fprintln(out, renderJobResults(ordered))
				})
				if err != nil {
					return err
				}
				if !result.Success {
					return fmt.Errorf("cycle finished with failed jobs: %s", strings.Join(result.FailedJobs, ", "))
				}
				return nil
			})
		},
	}
	addJSONFlag(cmd, &jsonOutput, "the cycle result")
	return cmd
}

func newJobCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:       "job <name>",
		Short:     "Run a single job once and wait for it",
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.JobOrder,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if !slices.Contains(config.JobOrder, name) {
				return fmt.Errorf("unknown job %q (valid jobs: %s)", name, strings.Join(config.JobOrder, ", "))
			}

			return ctx.withApp(func(app *daemonrun.App) error {
				job, ok := app.Registry.Get(name)
				if !ok {
					return fmt.Errorf("job %q is not registered", name)
				}
				result := app.Runner.Run(cmd.Context(), job)
				err := emit(cmd, jsonOutput, result, func(out io.Writer) {
					fmt.Fprintln(out, renderJobResults([]runner.Result{result}))
				})
				if err != nil {
					return err
				}
				if !result.Success {
					return fmt.Errorf("job %s failed: %s", name, result.Error)
				}
				return nil
			})
		},
	}
	addJSONFlag(cmd, &jsonOutput, "the job result")
	return cmd
}

func renderJobResults(results []runner.Result) string {
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		outcome := "ok"
		if !res.Success {
			outcome = "failed"
		}
		rows = append(rows, []string{
			res.Job,
			outcome,
			strconv.Itoa(res.Summary.Claimed),
			strconv.Itoa(res.Summary.Succeeded),
			strconv.Itoa(res.Summary.Failed),
			strconv.Itoa(res.Summary.Skipped),
			res.Elapsed,
			firstNonEmpty(res.Error, res.Summary.Detail),
		})
	}
	return renderTable(
		[]string{"Job", "Result", "Claimed", "OK", "Failed", "Skipped", "Duration", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
