package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"clinicdash/internal/services/importer"
)

type importOptions struct {
	asJSON bool
	strict bool
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import FILE.csv",
		Short: "Parse and validate a CSV export without loading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the full parse result as JSON")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit non-zero when any row has an error")
	return cmd
}

func runImport(cmd *cobra.Command, path string, opts importOptions) error {
	if err := importer.CheckUpload(path, ""); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := importer.Parse(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	summary := result.Summary()

	out := cmd.OutOrStdout()
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{"summary": summary, "result": result}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "%s: %d rows, %d valid, %d invalid (%d errors, %d warnings)\n",
			path, summary.Rows, summary.Valid, summary.Invalid, summary.Errors, summary.Warnings)

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, row := range result.Rows {
			for _, issue := range row.Issues {
				fmt.Fprintf(w, "line %d\t%s\t%s\t%s\n", issue.Line, issue.Severity, issue.Code, issue.Message)
			}
		}
		w.Flush()
	}

	if opts.strict && summary.Invalid > 0 {
		return errIssuesFound
	}
	return nil
}
