package metrics

import (
	"errors"
	"fmt"
	"time"

	"clinicdash/internal/models"
	"clinicdash/internal/services/aggregation"
)

// TrendMonths is the sparkline length used when none is configured
const TrendMonths = 6

// ErrUnknownComparison is returned for a comparison mode other than
// previous or year
var ErrUnknownComparison = errors.New("unknown comparison mode")

// Service provides metric calculation functionality
type Service struct {
	trendMonths int
}

// New creates a new metrics service with the given sparkline length
func New(trendMonths int) *Service {
	if trendMonths <= 0 {
		trendMonths = TrendMonths
	}
	return &Service{trendMonths: trendMonths}
}

// CalculateMetrics computes the headline KPIs for records inside window.
// A nil window uses every record, dated or not. The sparkline ends at the
// window end, or at now without a window.
func (s *Service) CalculateMetrics(records []models.VisitRecord, window *aggregation.DateRange, now time.Time) *models.DashboardMetrics {
	in := aggregation.Filter(records, window)
	total := aggregation.Total(in, nil)

	m := &models.DashboardMetrics{
		Revenue:        total.Revenue,
		VisitCount:     total.Count,
		UnitPrice:      total.UnitPrice,
		PatientCount:   countPatients(in),
		NewCount:       total.NewCount,
		ExistingCount:  total.ExistingCount,
		OtherCount:     total.OtherCount,
		UndatedRecords: countUndated(records),
	}
	if total.Count > 0 {
		m.NewRate = float64(total.NewCount) / float64(total.Count) * 100
	}

	set := models.NewRecordSet(in)
	m.StartDate, m.EndDate = set.MinDate(), set.MaxDate()

	end := now
	if window != nil {
		end = window.End
	}
	for _, b := range aggregation.MonthlySeries(records, s.trendMonths, end) {
		m.RevenueTrend = append(m.RevenueTrend, b.Revenue)
		m.VisitTrend = append(m.VisitTrend, b.Count)
		m.TrendLabels = append(m.TrendLabels, b.Key)
	}
	return m
}

// CalculateComparison compares the window against the period of equal
// length before it, or against the same dates a year earlier.
func (s *Service) CalculateComparison(records []models.VisitRecord, window *aggregation.DateRange, mode models.ComparisonMode) (*models.PeriodComparison, error) {
	var baseline *aggregation.DateRange
	switch mode {
	case models.ComparePrevious:
		baseline = window.Previous()
	case models.CompareYear:
		baseline = window.YearBefore()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownComparison, mode)
	}

	current := s.CalculateMetrics(records, window, window.End)
	previous := s.CalculateMetrics(records, baseline, baseline.End)

	c := &models.PeriodComparison{
		Mode:     mode,
		Current:  current,
		Previous: previous,
		HasData:  previous.VisitCount > 0,
	}
	if !c.HasData {
		return c, nil
	}

	c.RevenueRatio = aggregation.RatioPercent(current.Revenue, previous.Revenue)
	c.VisitRatio = aggregation.RatioPercent(float64(current.VisitCount), float64(previous.VisitCount))
	c.UnitPriceRatio = aggregation.RatioPercent(current.UnitPrice, previous.UnitPrice)
	c.NewRateChange = current.NewRate - previous.NewRate
	return c, nil
}

// ParseComparison maps a query value to a comparison mode, defaulting to
// the previous period.
func ParseComparison(s string) (models.ComparisonMode, error) {
	switch models.ComparisonMode(s) {
	case "", models.ComparePrevious:
		return models.ComparePrevious, nil
	case models.CompareYear:
		return models.CompareYear, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownComparison, s)
}

func countPatients(records []models.VisitRecord) int {
	seen := make(map[string]bool)
	for i := range records {
		seen[records[i].PatientKey()] = true
	}
	return len(seen)
}

func countUndated(records []models.VisitRecord) int {
	n := 0
	for i := range records {
		if _, ok := records[i].EffectiveDate(); !ok {
			n++
		}
	}
	return n
}
