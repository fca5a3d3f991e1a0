package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	apphttp "clinicdash/internal/http"
	"clinicdash/internal/models"
	"clinicdash/internal/services/aggregation"
	"clinicdash/internal/services/export"
)

type aggregateOptions struct {
	by    string
	start string
	end   string
	limit int
	xlsx  string
}

func newAggregateCmd(global *globalOptions) *cobra.Command {
	var opts aggregateOptions

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate the record files by a dimension",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(cmd, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.by, "by", string(aggregation.Month), "Dimension: month, clinic, staff, category, specialty, gender, age_band, patient_type, referral_source, patient")
	cmd.Flags().StringVar(&opts.start, "start", "", "First day of the window (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.end, "end", "", "Last day of the window (YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Keep only the top N buckets by revenue")
	cmd.Flags().StringVar(&opts.xlsx, "xlsx", "", "Also write the table to this .xlsx file")
	return cmd
}

func runAggregate(cmd *cobra.Command, global *globalOptions, opts aggregateOptions) error {
	dim, err := aggregation.ParseDimension(opts.by)
	if err != nil {
		return err
	}

	cfg := global.loadConfig()
	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	records, err := loadRecords(cfg, store)
	if err != nil {
		return err
	}

	set := models.NewRecordSet(records)
	window, err := apphttp.ParseDateRange(opts.start, opts.end, set.MinDate(), set.MaxDate())
	if err != nil {
		return err
	}

	buckets := aggregation.Aggregate(records, dim, window)
	if opts.limit > 0 {
		buckets = aggregation.TopN(buckets, opts.limit)
	}
	buckets = aggregation.Cumulative(buckets)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "KEY\tREVENUE\tCOUNT\tUNIT PRICE\tNEW\tEXISTING\tOTHER\tCUMULATIVE\t")
	for _, b := range buckets {
		fmt.Fprintf(w, "%s\t%.0f\t%d\t%.0f\t%d\t%d\t%d\t%.0f\t\n",
			b.Label, b.Revenue, b.Count, b.UnitPrice, b.NewCount, b.ExistingCount, b.OtherCount, b.Cumulative)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if rec := aggregation.Reconcile(records, dim, window); !rec.Balanced() {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: buckets differ from record revenue by %.0f\n", rec.Difference)
	}

	if opts.xlsx == "" {
		return nil
	}
	f, err := os.Create(opts.xlsx)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := export.WriteBucketsXLSX(f, dim.Label()+"別集計", buckets); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", opts.xlsx)
	return f.Close()
}
