package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"shortsfactory/internal/config"
	"shortsfactory/internal/fileutil"
	"shortsfactory/internal/jobs/collect"
	"shortsfactory/internal/records"
)

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var title string
	var idFlag string

	cmd := &cobra.Command{
		Use:   "ingest <path>",
		Short: "Copy an mp4 into the inbox for the next collector run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			info, err := os.Stat(absPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("file does not exist: %s", absPath)
				}
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", absPath)
			}
			if ext := strings.ToLower(filepath.Ext(absPath)); ext != ".mp4" {
				return fmt.Errorf("unsupported file extension %q (only .mp4 is collected)", ext)
			}

			id := strings.TrimSpace(idFlag)
			if id == "" {
				id = strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath))
			}
			id = strings.Trim(unsafeIDChars.ReplaceAllString(id, "_"), "_")
			if id == "" {
				return errors.New("could not derive a record id; pass --id")
			}

			return ctx.withStore(func(cfg *config.Config, store *records.Store) error {
				exists, err := store.Exists(cmd.Context(), id)
				if err != nil {
					return err
				}
				if exists {
					return fmt.Errorf("record %s already exists", id)
				}
				dest, err := stageInbox(cfg, absPath, id, strings.TrimSpace(title))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Staged %s as %s (%s)\n", filepath.Base(absPath), id, dest)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Title recorded for the video")
	cmd.Flags().StringVar(&idFlag, "id", "", "Record id (defaults to the file name)")
	return cmd
}

// stageInbox writes the sidecar before the video so the collector always
// finds the title alongside the file.
func stageInbox(cfg *config.Config, src, id, title string) (string, error) {
	inbox := cfg.Paths.InboxDir()
	dest := filepath.Join(inbox, id+".mp4")
	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("%s is already waiting in the inbox", id)
	}
	if title != "" {
		if err := collect.WriteSidecar(inbox, id, collect.Sidecar{Title: title, Platform: "manual"}); err != nil {
			return "", err
		}
	}
	if err := fileutil.CopyFileVerified(src, dest); err != nil {
		return "", fmt.Errorf("copy into inbox: %w", err)
	}
	return dest, nil
}
