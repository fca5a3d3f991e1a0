package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"clinicdash/internal/models"
	"clinicdash/internal/services/goals"
)

func newGoalsCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Show or export staff goal progress",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "progress",
		Short: "Print each goal with its actuals",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, records, err := openGoals(global)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STAFF\tCLINIC\tMONTH\tREVENUE\tTARGET\tACHIEVED\tVISITS\tNEW RATE\tREPEAT RATE")
			for _, p := range goals.ProgressAll(store.List(), records) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%.0f\t%.1f%%\t%d\t%.1f%%\t%.1f%%\n",
					p.Goal.StaffName, p.Goal.ClinicName, p.Goal.Month,
					p.Revenue, p.Goal.RevenueTarget, p.AchievementRate,
					p.Visits, p.NewRate, p.RepeatRate)
			}
			return w.Flush()
		},
	})

	var output string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the goals CSV export",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, records, err := openGoals(global)
			if err != nil {
				return err
			}

			if output == "-" {
				return goals.ExportCSV(cmd.OutOrStdout(), store.List(), records)
			}
			if output == "" {
				output = goals.ExportFilename(time.Now())
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := goals.ExportCSV(f, store.List(), records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
			return f.Close()
		},
	}
	exportCmd.Flags().StringVarP(&output, "output", "o", "", `Output file, "-" for stdout (default goals_export_<timestamp>.csv)`)
	cmd.AddCommand(exportCmd)

	return cmd
}

func openGoals(global *globalOptions) (*goals.Store, []models.VisitRecord, error) {
	cfg := global.loadConfig()
	store, err := openStorage(cfg)
	if err != nil {
		return nil, nil, err
	}

	goalStore := goals.New(store, cfg.SettingsDirectory)
	if err := goalStore.Load(); err != nil {
		return nil, nil, err
	}
	records, err := loadRecords(cfg, store)
	if err != nil {
		return nil, nil, err
	}
	return goalStore, records, nil
}
