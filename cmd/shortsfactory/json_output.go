package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

// addJSONFlag registers the --json switch shared by the reporting commands.
func addJSONFlag(cmd *cobra.Command, target *bool, subject string) {
	cmd.Flags().BoolVar(target, "json", false, "Output "+subject+" as JSON")
}

// emit writes v as indented JSON when asJSON is set and hands stdout to
// render otherwise.
func emit(cmd *cobra.Command, asJSON bool, v any, render func(out io.Writer)) error {
	out := cmd.OutOrStdout()
	if !asJSON {
		render(out)
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
