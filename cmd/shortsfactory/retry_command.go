package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shortsfactory/internal/config"
	"shortsfactory/internal/records"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>...",
		Short: "Return failed records to the stage they failed in",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				out := cmd.OutOrStdout()
				var errs []error
				for _, raw := range args {
					id := strings.TrimSpace(raw)
					status, err := store.RetryFailed(cmd.Context(), id)
					if err != nil {
						errs = append(errs, err)
						continue
					}
					fmt.Fprintf(out, "%s -> %s\n", id, status)
				}
				return errors.Join(errs...)
			})
		},
	}
}
