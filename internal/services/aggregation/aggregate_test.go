package aggregation

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicdash/internal/models"
)

func price(v float64) models.Number { return models.NewNumber(v) }

func item(category, name string, p float64, staff string) models.PaymentItem {
	return models.PaymentItem{Category: models.Text(category), Name: models.Text(name), PriceWithTax: price(p), MainStaffName: models.Text(staff)}
}

func sampleRecords() []models.VisitRecord {
	return []models.VisitRecord{
		{
			VisitorID:  "p1",
			RecordDate: "2024-03-02",
			ClinicName: "横浜院",
			IsFirst:    models.NewFlag(true),
			PaymentItems: []models.PaymentItem{
				item("美容外科", "二重埋没", 200000, "佐藤"),
				item("美容皮膚科", "ボトックス", 30000, "鈴木"),
			},
		},
		{
			VisitorID:    "p2",
			RecordDate:   "2024-03-15",
			ClinicID:     "mito",
			TotalWithTax: price(50000),
		},
		{
			VisitorID:   "p3",
			VisitDate:   "2024-04-01",
			ClinicName:  "横浜院",
			PaymentTags: "ピアス",
			IsFirst:     models.NewFlag(true),
			PaymentItems: []models.PaymentItem{
				item("", "ピアス", 8000, "佐藤"),
			},
		},
		{
			VisitorID:    "undated",
			ClinicName:   "横浜院",
			TotalWithTax: price(7000),
		},
	}
}

func byKey(buckets []Bucket) map[string]Bucket {
	out := make(map[string]Bucket, len(buckets))
	for _, b := range buckets {
		out[b.Key] = b
	}
	return out
}

func TestMonthScenario(t *testing.T) {
	records := []models.VisitRecord{
		{RecordDate: "2024-05-10", PaymentItems: []models.PaymentItem{{Category: "surgery_double_eyelid", PriceWithTax: price(100000)}}},
		{RecordDate: "2024-05-20", TotalWithTax: price(50000), PaymentItems: []models.PaymentItem{}},
	}

	buckets := Aggregate(records, Month, nil)
	require.Len(t, buckets, 1)
	assert.Equal(t, "2024-05", buckets[0].Key)
	assert.Equal(t, 150000.0, buckets[0].Revenue)
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, 75000.0, buckets[0].UnitPrice)
}

func TestAggregateByClinic(t *testing.T) {
	buckets := Aggregate(sampleRecords(), Clinic, nil)
	require.Len(t, buckets, 2)

	// first-seen order
	assert.Equal(t, "横浜院", buckets[0].Key)
	assert.Equal(t, "水戸院", buckets[1].Key)

	assert.Equal(t, 245000.0, buckets[0].Revenue)
	assert.Equal(t, 3, buckets[0].Count)
	assert.Equal(t, 1, buckets[0].NewCount)
	assert.Equal(t, 1, buckets[0].ExistingCount)
	assert.Equal(t, 1, buckets[0].OtherCount)
	assert.Equal(t, 8000.0, buckets[0].OtherRevenue)
}

func TestAggregateItemLevel(t *testing.T) {
	records := sampleRecords()

	t.Run("staff", func(t *testing.T) {
		got := byKey(Aggregate(records, Staff, nil))
		require.Len(t, got, 3)

		assert.Equal(t, 208000.0, got["佐藤"].Revenue)
		assert.Equal(t, 2, got["佐藤"].Count)
		assert.Equal(t, 30000.0, got["鈴木"].Revenue)
		assert.Equal(t, 1, got["鈴木"].Count)
		assert.Equal(t, 57000.0, got[models.UnsetLabel].Revenue)
		assert.Equal(t, 2, got[models.UnsetLabel].Count)
	})

	t.Run("category", func(t *testing.T) {
		buckets := Aggregate(records, Category, nil)
		got := byKey(buckets)

		assert.Equal(t, 200000.0, got["surgery_double_eyelid"].Revenue)
		assert.Equal(t, 30000.0, got["dermatology_injection"].Revenue)
		assert.Equal(t, 8000.0, got["other_piercing"].Revenue)
		assert.Equal(t, 57000.0, got["other_uncategorized"].Revenue)

		// canonical table order
		assert.Equal(t, "surgery_double_eyelid", buckets[0].Key)
		assert.Equal(t, "other_uncategorized", buckets[len(buckets)-1].Key)
	})

	t.Run("record counted once per bucket", func(t *testing.T) {
		r := []models.VisitRecord{{
			RecordDate: "2024-01-01",
			PaymentItems: []models.PaymentItem{
				item("美容外科", "二重埋没", 100, "佐藤"),
				item("美容外科", "二重切開", 200, "佐藤"),
			},
		}}
		got := Aggregate(r, Staff, nil)
		require.Len(t, got, 1)
		assert.Equal(t, 1, got[0].Count)
		assert.Equal(t, 300.0, got[0].Revenue)
		assert.Equal(t, 150.0, got[0].UnitPrice)
	})
}

func TestEveryDimensionReconciles(t *testing.T) {
	records := sampleRecords()
	window := NewDateRange(time.Date(2024, 1, 1, 0, 0, 0, 0, models.Location), time.Date(2024, 12, 31, 0, 0, 0, 0, models.Location))

	for _, dim := range Dimensions {
		t.Run(string(dim), func(t *testing.T) {
			rec := Reconcile(records, dim, nil)
			assert.True(t, rec.Balanced(), "difference %v", rec.Difference)

			rec = Reconcile(records, dim, window)
			assert.True(t, rec.Balanced(), "windowed difference %v", rec.Difference)
			assert.Equal(t, 3, rec.RecordCount)
		})
	}

	rec := Reconcile(records, Month, nil)
	assert.Equal(t, 1, rec.SkippedCount)
}

func TestPatientSkipsAnonymous(t *testing.T) {
	records := []models.VisitRecord{
		{VisitorID: "p1", VisitorName: "山田", RecordDate: "2024-03-02", TotalWithTax: price(10000)},
		{VisitorID: "p1", VisitorName: "山田", RecordDate: "2024-03-09", TotalWithTax: price(5000)},
		{RecordDate: "2024-03-02", ClinicName: "横浜院", TotalWithTax: price(3000)},
		{RecordDate: "2024-03-03", ClinicName: "水戸院", TotalWithTax: price(4000)},
	}

	buckets := Aggregate(records, Patient, nil)
	require.Len(t, buckets, 1)
	assert.Equal(t, "p1", buckets[0].Key)
	assert.InDelta(t, 15000, buckets[0].Revenue, 0.01)
	assert.NotContains(t, byKey(buckets), models.UnsetLabel)

	rec := Reconcile(records, Patient, nil)
	assert.True(t, rec.Balanced(), "difference %v", rec.Difference)
	assert.Equal(t, 2, rec.SkippedCount)

	// other dimensions still count anonymous visits
	rec = Reconcile(records, Clinic, nil)
	assert.True(t, rec.Balanced())
	assert.Zero(t, rec.SkippedCount)
}

func TestUnitPriceReconciles(t *testing.T) {
	for _, dim := range Dimensions {
		for _, b := range Aggregate(sampleRecords(), dim, nil) {
			if b.Count == 0 {
				assert.Equal(t, 0.0, b.UnitPrice)
				continue
			}
			assert.InDelta(t, b.Revenue, b.UnitPrice*float64(b.Count), 1e-6, "%s/%s", dim, b.Key)
		}
	}
	assert.Equal(t, 0.0, UnitPrice(1000, 0))
}

func TestAggregateWindow(t *testing.T) {
	window := NewDateRange(time.Date(2024, 3, 1, 0, 0, 0, 0, models.Location), time.Date(2024, 3, 31, 0, 0, 0, 0, models.Location))
	buckets := Aggregate(sampleRecords(), Clinic, window)
	got := byKey(buckets)

	assert.Equal(t, 230000.0, got["横浜院"].Revenue)
	assert.Equal(t, 1, got["横浜院"].Count)
	assert.Equal(t, 50000.0, got["水戸院"].Revenue)
}

func TestPatientTypeZeroFilled(t *testing.T) {
	records := []models.VisitRecord{{RecordDate: "2024-01-01", IsFirst: models.NewFlag(true), TotalWithTax: price(100)}}
	buckets := Aggregate(records, PatientType, nil)

	require.Len(t, buckets, 3)
	assert.Equal(t, "new", buckets[0].Key)
	assert.Equal(t, 1, buckets[0].Count)
	assert.Equal(t, "existing", buckets[1].Key)
	assert.Equal(t, 0, buckets[1].Count)
	assert.Equal(t, 0.0, buckets[1].UnitPrice)
	assert.Equal(t, "other", buckets[2].Key)
}

func TestPiercingScenario(t *testing.T) {
	records := []models.VisitRecord{{RecordDate: "2024-01-01", PaymentTags: "ピアス", IsFirst: models.NewFlag(true), TotalWithTax: price(5000)}}
	got := byKey(Aggregate(records, PatientType, nil))

	assert.Equal(t, 1, got["other"].Count)
	assert.Equal(t, 0, got["new"].Count)
}

func TestAgeBandOrder(t *testing.T) {
	records := []models.VisitRecord{
		{VisitorAge: price(45)},
		{},
		{VisitorAge: price(23)},
		{VisitorAge: price(150)},
		{VisitorAge: price(29)},
	}
	buckets := Aggregate(records, AgeBand, nil)
	require.Len(t, buckets, 3)
	assert.Equal(t, "20s", buckets[0].Key)
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, "40s", buckets[1].Key)
	assert.Equal(t, models.UnknownAgeBand, buckets[2].Key)
	assert.Equal(t, 2, buckets[2].Count)
}

func TestMonthlySeries(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, models.Location)
	records := []models.VisitRecord{
		{RecordDate: "2023-05-10", TotalWithTax: price(100)},
		{RecordDate: "2024-04-10", TotalWithTax: price(1000)},
		{RecordDate: "2024-05-10", TotalWithTax: price(500)},
		{RecordDate: "2024-07-01", TotalWithTax: price(999)},
	}

	for _, n := range []int{1, 3, 6, 12, 24} {
		t.Run("window", func(t *testing.T) {
			assert.Len(t, MonthlySeries(records, n, now), n)
		})
	}

	series := MonthlySeries(records, 3, now)
	assert.Equal(t, []string{"2024-04", "2024-05", "2024-06"}, []string{series[0].Key, series[1].Key, series[2].Key})
	assert.Equal(t, 1000.0, series[0].Revenue)
	assert.Equal(t, 0.0, series[0].MoM, "baseline month is empty")
	assert.Equal(t, 50.0, series[1].MoM)
	assert.Equal(t, 500.0, series[1].YoY)
	assert.Equal(t, 0.0, series[2].Revenue)
	assert.Equal(t, 0, series[2].Count)

	assert.Empty(t, MonthlySeries(records, 0, now))
}

func TestRatioPercent(t *testing.T) {
	tests := []struct {
		current, previous, expected float64
	}{
		{150, 100, 150},
		{50, 100, 50},
		{100, 0, 0},
		{0, 0, 0},
		{0, 100, 0},
	}
	for _, tt := range tests {
		got := RatioPercent(tt.current, tt.previous)
		assert.Equal(t, tt.expected, got)
		assert.False(t, math.IsNaN(got) || math.IsInf(got, 0))
	}
}

func TestCumulative(t *testing.T) {
	in := []Bucket{{Key: "a", Revenue: 10, Cumulative: 999}, {Key: "b", Revenue: 20}, {Key: "c", Revenue: 5}}
	out := Cumulative(in)

	assert.Equal(t, []float64{10, 30, 35}, []float64{out[0].Cumulative, out[1].Cumulative, out[2].Cumulative})
	assert.Equal(t, 999.0, in[0].Cumulative, "input untouched")
	assert.Equal(t, out, Cumulative(out))
}

func TestTopN(t *testing.T) {
	in := []Bucket{{Key: "a", Revenue: 10}, {Key: "b", Revenue: 30}, {Key: "c", Revenue: 10}, {Key: "d", Revenue: 20}}

	top := TopN(in, 3)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"b", "d", "a"}, []string{top[0].Key, top[1].Key, top[2].Key})
	assert.Len(t, TopN(in, 0), 4)
	assert.Equal(t, "a", in[0].Key, "input untouched")
}

func TestParseDimension(t *testing.T) {
	tests := []struct {
		input    string
		expected Dimension
	}{
		{"month", Month},
		{"categoryId", Category},
		{"ageband", AgeBand},
		{"age_band", AgeBand},
		{"patientType", PatientType},
		{"referralSource", ReferralSource},
		{" Clinic ", Clinic},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDimension(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := ParseDimension("weather")
	assert.True(t, errors.Is(err, ErrUnknownDimension))
}

func TestDimensionLabel(t *testing.T) {
	for _, d := range Dimensions {
		assert.NotEqual(t, string(d), d.Label(), "dimension %s has no label", d)
	}
	assert.Equal(t, "担当者", Staff.Label())
	assert.Equal(t, "weather", Dimension("weather").Label())
}

func TestDateRange(t *testing.T) {
	r := NewDateRange(time.Date(2024, 3, 1, 15, 0, 0, 0, models.Location), time.Date(2024, 3, 31, 1, 0, 0, 0, models.Location))
	assert.Equal(t, 31, r.Days())
	assert.True(t, r.Contains(time.Date(2024, 3, 31, 23, 0, 0, 0, models.Location)))

	prev := r.Previous()
	assert.Equal(t, "2024-01-30", prev.Start.Format("2006-01-02"))
	assert.Equal(t, "2024-02-29", prev.End.Format("2006-01-02"))

	year := r.YearBefore()
	assert.Equal(t, "2023-03-01", year.Start.Format("2006-01-02"))
	assert.Equal(t, "2023-03-31", year.End.Format("2006-01-02"))
}

func TestAggregateIsPure(t *testing.T) {
	records := sampleRecords()
	first := Aggregate(records, Category, nil)
	second := Aggregate(records, Category, nil)
	assert.Equal(t, first, second)
	assert.Equal(t, sampleRecords(), records)
}
