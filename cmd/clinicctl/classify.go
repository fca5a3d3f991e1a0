package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"clinicdash/internal/services/classifier"
)

func newClassifyCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "classify [CATEGORY] [NAME]",
		Short: "Classify a treatment category and name",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if list {
				fmt.Fprintln(w, "ID\tSPECIALTY\tSUBCATEGORY\tLABEL")
				for _, c := range classifier.Categories() {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Specialty, c.Subcategory, c.Label())
				}
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("a category or --list is required")
			}

			var category, name string
			category = args[0]
			if len(args) > 1 {
				name = args[1]
			}
			res := classifier.Classify(category, name)
			fmt.Fprintln(w, "SPECIALTY\tSUBCATEGORY\tCATEGORY\tLABEL")
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", res.Specialty, res.Subcategory, res.CategoryID, res.Label)
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List the canonical category table")
	return cmd
}
