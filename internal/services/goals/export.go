package goals

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"clinicdash/internal/models"
)

// ExportHeader is the fixed column order of the goals CSV
var ExportHeader = []string{
	"スタッフ名", "院", "対象月",
	"売上目標", "売上実績", "達成率",
	"来院数目標", "来院数実績",
	"新規目標", "新規実績",
	"新規率目標",
	"単価目標", "単価実績",
	"リピート率目標", "リピート率実績",
	"備考",
}

// ExportCSV writes one row per goal with its actuals. The file starts with
// a UTF-8 BOM so spreadsheet apps detect the encoding of the Japanese
// header.
func ExportCSV(w io.Writer, goals []models.StaffGoal, records []models.VisitRecord) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return fmt.Errorf("failed to write goals export: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("failed to write goals export: %w", err)
	}

	for _, p := range ProgressAll(goals, records) {
		g := p.Goal
		row := []string{
			g.StaffName,
			g.ClinicName,
			g.Month,
			plain(g.RevenueTarget),
			plain(p.Revenue),
			percent(p.AchievementRate),
			strconv.Itoa(g.VisitTarget),
			strconv.Itoa(p.Visits),
			strconv.Itoa(g.NewPatientTarget),
			strconv.Itoa(p.NewPatients),
			percent(g.NewRateTarget),
			plain(g.UnitPriceTarget),
			plain(p.UnitPrice),
			percent(g.RepeatRateTarget),
			percent(p.RepeatRate),
			g.Note,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write goals export: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportFilename is goals_export_<ISO timestamp>.csv with colons replaced
func ExportFilename(now time.Time) string {
	ts := now.UTC().Format("2006-01-02T15:04:05.000Z")
	return "goals_export_" + strings.ReplaceAll(ts, ":", "-") + ".csv"
}

// plain writes yen amounts rounded to whole numbers, no grouping
func plain(v float64) string {
	return decimal.NewFromFloat(v).Round(0).String()
}

func percent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(1) + "%"
}
