package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"shortsfactory/internal/config"
)

type configReport struct {
	Path          string `json:"path"`
	FileExists    bool   `json:"fileExists"`
	DataDir       string `json:"dataDir"`
	Timezone      string `json:"timezone"`
	MaxDaily      int    `json:"maxDaily"`
	Publishing    bool   `json:"publishing"`
	Notifications bool   `json:"notifications"`
}

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Create or check the configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}
	cmd.AddCommand(newConfigValidateCommand(ctx), newConfigInitCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented sample configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(target); err == nil && !overwrite {
				return fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("inspect %s: %w", target, err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set paths.face_video and the [publish] Metricool credentials before starting the daemon.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Where to write the file (default ~/.config/shortsfactory/config.toml)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func initTarget(raw string) (string, error) {
	if raw = strings.TrimSpace(raw); raw == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("default config path: %w", err)
		}
		return path, nil
	}
	path, err := config.ExpandPath(raw)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", raw, err)
	}
	return path, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load, validate, and summarize the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			report := configReport{
				Path:          path,
				FileExists:    exists,
				DataDir:       cfg.Paths.DataDir,
				Timezone:      cfg.Workflow.Timezone,
				MaxDaily:      cfg.Publish.MaxDaily,
				Publishing:    cfg.PublishConfigured(),
				Notifications: cfg.EmailConfigured(),
			}
			return emit(cmd, jsonOutput, report, func(out io.Writer) {
				for _, line := range configLines(report, shouldColorize(out)) {
					fmt.Fprintln(out, line)
				}
			})
		},
	}
	addJSONFlag(cmd, &jsonOutput, "the summary")
	return cmd
}

func configLines(report configReport, colorize bool) []string {
	lines := renderSectionHeader("Configuration", colorize)
	if report.FileExists {
		lines = append(lines, renderStatusLine("File", statusOK, report.Path, colorize))
	} else {
		lines = append(lines, renderStatusLine("File", statusWarn, report.Path+" (missing, defaults used)", colorize))
	}
	lines = append(lines,
		renderStatusLine("Data directory", statusInfo, report.DataDir, colorize),
		renderStatusLine("Timezone", statusInfo, report.Timezone, colorize),
		renderStatusLine("Daily posts", statusInfo, fmt.Sprint(report.MaxDaily), colorize),
	)
	if report.Publishing {
		lines = append(lines, renderStatusLine("Publishing", statusOK, "Metricool credentials set", colorize))
	} else {
		lines = append(lines, renderStatusLine("Publishing", statusWarn, "Metricool credentials missing", colorize))
	}
	lines = append(lines, renderStatusLine("Email", statusInfo, yesNo(report.Notifications), colorize))
	return append(lines, renderStatusLine("Result", statusOK, "Configuration valid", colorize))
}
