package goals

import (
	"strings"
	"time"

	"clinicdash/internal/models"
	"clinicdash/internal/services/aggregation"
)

// Progress computes the actuals for a goal's staff member over the goal's
// month, limited to the goal's clinic when one is set. Staff names match
// after normalization with spaces removed, so "山田 花子" finds "山田花子".
func Progress(goal models.StaffGoal, records []models.VisitRecord) models.GoalProgress {
	p := models.GoalProgress{Goal: goal}

	month, err := time.ParseInLocation("2006-01", goal.Month, models.Location)
	if err != nil {
		return p
	}

	in := aggregation.Filter(records, aggregation.MonthRange(month))
	if goal.ClinicName != "" {
		in = models.NewRecordSet(in).FilterByClinic(goal.ClinicName).Records
	}

	want := staffKey(goal.StaffName)
	var existing int
	for _, b := range aggregation.Aggregate(in, aggregation.Staff, nil) {
		if staffKey(b.Key) != want {
			continue
		}
		p.Revenue += b.Revenue
		p.Visits += b.Count
		p.NewPatients += b.NewCount
		existing += b.ExistingCount
	}

	p.UnitPrice = aggregation.UnitPrice(p.Revenue, p.Visits)
	if p.Visits > 0 {
		p.NewRate = float64(p.NewPatients) / float64(p.Visits) * 100
	}
	// Repeat rate ignores "other" visits such as piercing or retail
	if n := p.NewPatients + existing; n > 0 {
		p.RepeatRate = float64(existing) / float64(n) * 100
	}
	p.AchievementRate = aggregation.RatioPercent(p.Revenue, goal.RevenueTarget)
	return p
}

// ProgressAll computes progress for each goal in order
func ProgressAll(goals []models.StaffGoal, records []models.VisitRecord) []models.GoalProgress {
	out := make([]models.GoalProgress, len(goals))
	for i, g := range goals {
		out[i] = Progress(g, records)
	}
	return out
}

func staffKey(name string) string {
	return strings.Join(strings.Fields(models.Normalize(name)), "")
}
