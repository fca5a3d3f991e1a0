// Package insights derives secondary views from visit records: category
// movement between periods, patient repeat behaviour and the revenue pace
// of the current month.
package insights

import (
	"math"
	"sort"
	"time"

	"clinicdash/internal/models"
	"clinicdash/internal/services/aggregation"
)

const (
	// stableBand is the percent change within which a category counts as stable
	stableBand = 5.0
	maxTrends  = 10
)

// Direction of a category between two periods
type Direction string

const (
	Up     Direction = "up"
	Down   Direction = "down"
	Stable Direction = "stable"
)

// CategoryTrend compares one category's revenue with the previous period
type CategoryTrend struct {
	Key           string    `json:"key"`
	Label         string    `json:"label"`
	Current       float64   `json:"current"`
	Previous      float64   `json:"previous"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Direction     Direction `json:"direction"`
}

// CategoryTrends compares category revenue in window against the window of
// equal length before it. Results are ordered by the size of the change and
// capped at ten.
func CategoryTrends(records []models.VisitRecord, window *aggregation.DateRange) []CategoryTrend {
	if window == nil {
		return []CategoryTrend{}
	}

	current := aggregation.Aggregate(records, aggregation.Category, window)
	previous := aggregation.Aggregate(records, aggregation.Category, window.Previous())

	byKey := make(map[string]*CategoryTrend)
	var trends []*CategoryTrend
	get := func(b aggregation.Bucket) *CategoryTrend {
		if t, ok := byKey[b.Key]; ok {
			return t
		}
		t := &CategoryTrend{Key: b.Key, Label: b.Label}
		byKey[b.Key] = t
		trends = append(trends, t)
		return t
	}
	for _, b := range current {
		get(b).Current = b.Revenue
	}
	for _, b := range previous {
		get(b).Previous = b.Revenue
	}

	out := make([]CategoryTrend, 0, len(trends))
	for _, t := range trends {
		t.Change = t.Current - t.Previous
		switch {
		case t.Previous == 0 && t.Current == 0:
			t.Direction = Stable
		case t.Previous == 0:
			t.ChangePercent = 100
			t.Direction = Up
		default:
			t.ChangePercent = t.Change / t.Previous * 100
			switch {
			case t.ChangePercent > stableBand:
				t.Direction = Up
			case t.ChangePercent < -stableBand:
				t.Direction = Down
			default:
				t.Direction = Stable
			}
		}
		out = append(out, *t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Change) > math.Abs(out[j].Change)
	})
	if len(out) > maxTrends {
		out = out[:maxTrends]
	}
	return out
}

// VisitBand counts patients by how often they visited
type VisitBand struct {
	Label    string `json:"label"`
	Patients int    `json:"patients"`
}

// RepeatStats summarizes how many patients came back within a window
type RepeatStats struct {
	Patients       int         `json:"patients"`
	RepeatPatients int         `json:"repeatPatients"`
	RepeatRate     float64     `json:"repeatRate"`
	AverageVisits  float64     `json:"averageVisits"`
	Distribution   []VisitBand `json:"distribution"`
}

var visitBandLabels = []string{"1回", "2回", "3回", "4回", "5回以上"}

// Repeat counts visits per patient inside the window. Records without a
// patient id or name are left out since they cannot be linked.
func Repeat(records []models.VisitRecord, window *aggregation.DateRange) RepeatStats {
	visits := make(map[string]int)
	total := 0
	for _, r := range aggregation.Filter(records, window) {
		key := r.PatientKey()
		if key == models.UnsetLabel {
			continue
		}
		visits[key]++
		total++
	}

	stats := RepeatStats{Distribution: make([]VisitBand, len(visitBandLabels))}
	for i, label := range visitBandLabels {
		stats.Distribution[i].Label = label
	}
	for _, n := range visits {
		band := n - 1
		if band >= len(visitBandLabels) {
			band = len(visitBandLabels) - 1
		}
		stats.Distribution[band].Patients++
		if n > 1 {
			stats.RepeatPatients++
		}
	}

	stats.Patients = len(visits)
	if stats.Patients > 0 {
		stats.RepeatRate = float64(stats.RepeatPatients) / float64(stats.Patients) * 100
		stats.AverageVisits = float64(total) / float64(stats.Patients)
	}
	return stats
}

// Pace projects the current month's revenue from the days elapsed so far
type Pace struct {
	Month            string  `json:"month"`
	RevenueToDate    float64 `json:"revenueToDate"`
	DaysElapsed      int     `json:"daysElapsed"`
	DaysInMonth      int     `json:"daysInMonth"`
	DailyAverage     float64 `json:"dailyAverage"`
	Projection       float64 `json:"projection"`
	PreviousMonth    float64 `json:"previousMonth"`
	ProjectionChange float64 `json:"projectionChange"` // percent vs previous month, 0 without one
}

// MonthPace measures the month containing now
func MonthPace(records []models.VisitRecord, now time.Time) Pace {
	month := aggregation.MonthRange(now)
	toDate := aggregation.NewDateRange(month.Start, now)
	previous := aggregation.MonthRange(month.Start.AddDate(0, -1, 0))

	p := Pace{
		Month:         models.MonthKey(month.Start),
		RevenueToDate: aggregation.Total(records, toDate).Revenue,
		DaysElapsed:   toDate.Days(),
		DaysInMonth:   month.Days(),
		PreviousMonth: aggregation.Total(records, previous).Revenue,
	}
	p.DailyAverage = p.RevenueToDate / float64(p.DaysElapsed)
	p.Projection = p.DailyAverage * float64(p.DaysInMonth)
	if p.PreviousMonth > 0 {
		p.ProjectionChange = aggregation.RatioPercent(p.Projection, p.PreviousMonth) - 100
	}
	return p
}
