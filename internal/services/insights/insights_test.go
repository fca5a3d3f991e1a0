package insights

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicdash/internal/models"
	"clinicdash/internal/services/aggregation"
)

func visit(id, date, category, name string, price float64) models.VisitRecord {
	return models.VisitRecord{
		VisitorID:  models.Text(id),
		RecordDate: models.Text(date),
		PaymentItems: []models.PaymentItem{
			{Category: models.Text(category), Name: models.Text(name), PriceWithTax: models.NewNumber(price)},
		},
	}
}

func sampleRecords() []models.VisitRecord {
	return []models.VisitRecord{
		visit("p1", "2024-03-02", "美容外科", "二重埋没", 200000),
		visit("p1", "2024-03-20", "美容皮膚科", "ボトックス", 30000),
		visit("p2", "2024-02-10", "美容外科", "二重埋没", 100000),
		visit("p2", "2024-02-15", "美容皮膚科", "ボトックス", 30000),
		{VisitorID: "p3", RecordDate: "2024-02-20", TotalWithTax: models.NewNumber(10000)},
		{RecordDate: "2024-03-05", TotalWithTax: models.NewNumber(5000)},
	}
}

func march() *aggregation.DateRange {
	return aggregation.MonthRange(time.Date(2024, 3, 15, 0, 0, 0, 0, models.Location))
}

func TestCategoryTrends(t *testing.T) {
	trends := CategoryTrends(sampleRecords(), march())
	require.NotEmpty(t, trends)

	got := make(map[string]CategoryTrend)
	for _, tr := range trends {
		got[tr.Key] = tr
	}

	tests := []struct {
		key       string
		change    float64
		percent   float64
		direction Direction
	}{
		{"surgery_double_eyelid", 100000, 100, Up},
		{"dermatology_injection", 0, 0, Stable},
		{"other_uncategorized", -5000, -50, Down},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			tr, ok := got[tt.key]
			require.True(t, ok)
			assert.Equal(t, tt.change, tr.Change)
			assert.InDelta(t, tt.percent, tr.ChangePercent, 0.001)
			assert.Equal(t, tt.direction, tr.Direction)
		})
	}

	// largest movement first
	assert.Equal(t, "surgery_double_eyelid", trends[0].Key)
}

func TestCategoryTrendsEdges(t *testing.T) {
	t.Run("nil window", func(t *testing.T) {
		assert.Empty(t, CategoryTrends(sampleRecords(), nil))
	})

	t.Run("new category counts as up", func(t *testing.T) {
		records := []models.VisitRecord{visit("p1", "2024-03-02", "美容外科", "二重埋没", 1000)}
		trends := CategoryTrends(records, march())
		require.Len(t, trends, 1)
		assert.Equal(t, 100.0, trends[0].ChangePercent)
		assert.Equal(t, Up, trends[0].Direction)
	})

	t.Run("small change is stable", func(t *testing.T) {
		records := []models.VisitRecord{
			visit("p1", "2024-03-02", "美容外科", "二重埋没", 1030),
			visit("p1", "2024-02-20", "美容外科", "二重埋没", 1000),
		}
		trends := CategoryTrends(records, march())
		require.Len(t, trends, 1)
		assert.Equal(t, Stable, trends[0].Direction)
	})
}

func TestRepeat(t *testing.T) {
	stats := Repeat(sampleRecords(), nil)

	// the anonymous record cannot be linked to a patient
	assert.Equal(t, 3, stats.Patients)
	assert.Equal(t, 2, stats.RepeatPatients)
	assert.InDelta(t, 66.667, stats.RepeatRate, 0.001)
	assert.InDelta(t, 5.0/3.0, stats.AverageVisits, 0.001)

	require.Len(t, stats.Distribution, 5)
	assert.Equal(t, "1回", stats.Distribution[0].Label)
	assert.Equal(t, 1, stats.Distribution[0].Patients)
	assert.Equal(t, 2, stats.Distribution[1].Patients)

	t.Run("window", func(t *testing.T) {
		stats := Repeat(sampleRecords(), march())
		assert.Equal(t, 1, stats.Patients)
		assert.Equal(t, 1, stats.RepeatPatients)
	})

	t.Run("five or more share a band", func(t *testing.T) {
		var records []models.VisitRecord
		for day := 1; day <= 7; day++ {
			records = append(records, visit("p9", fmt.Sprintf("2024-01-%02d", day), "美容外科", "二重埋没", 100))
		}
		stats := Repeat(records, nil)
		assert.Equal(t, 1, stats.Distribution[4].Patients)
		assert.Equal(t, 7.0, stats.AverageVisits)
	})

	t.Run("empty", func(t *testing.T) {
		stats := Repeat(nil, nil)
		assert.Zero(t, stats.Patients)
		assert.Zero(t, stats.RepeatRate)
		assert.Len(t, stats.Distribution, 5)
	})
}

func TestMonthPace(t *testing.T) {
	asOf := time.Date(2024, 3, 10, 0, 0, 0, 0, models.Location)
	p := MonthPace(sampleRecords(), asOf)

	assert.Equal(t, "2024-03", p.Month)
	assert.Equal(t, 205000.0, p.RevenueToDate)
	assert.Equal(t, 10, p.DaysElapsed)
	assert.Equal(t, 31, p.DaysInMonth)
	assert.Equal(t, 20500.0, p.DailyAverage)
	assert.Equal(t, 635500.0, p.Projection)
	assert.Equal(t, 140000.0, p.PreviousMonth)
	assert.InDelta(t, 635500.0/140000.0*100-100, p.ProjectionChange, 0.001)

	t.Run("no previous month", func(t *testing.T) {
		p := MonthPace(sampleRecords(), time.Date(2024, 2, 29, 0, 0, 0, 0, models.Location))
		assert.Equal(t, 29, p.DaysElapsed)
		assert.Equal(t, 29, p.DaysInMonth)
		assert.Equal(t, p.RevenueToDate, p.Projection)
		assert.Zero(t, p.ProjectionChange)
	})
}
