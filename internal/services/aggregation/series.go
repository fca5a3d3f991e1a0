package aggregation

import (
	"math"
	"sort"
	"time"

	"clinicdash/internal/models"
)

// monthRevenue maps "2006-01" to the revenue of every dated record
func monthRevenue(records []models.VisitRecord) map[string]float64 {
	out := make(map[string]float64)
	for i := range records {
		if d, ok := records[i].EffectiveDate(); ok {
			out[models.MonthKey(d)] += records[i].EffectiveRevenue()
		}
	}
	return out
}

func applyComparisons(buckets []Bucket, revenue map[string]float64) {
	for i := range buckets {
		month, err := time.ParseInLocation("2006-01", buckets[i].Key, models.Location)
		if err != nil {
			continue
		}
		buckets[i].MoM = RatioPercent(buckets[i].Revenue, revenue[models.MonthKey(month.AddDate(0, -1, 0))])
		buckets[i].YoY = RatioPercent(buckets[i].Revenue, revenue[models.MonthKey(month.AddDate(-1, 0, 0))])
	}
}

// MonthlySeries returns exactly months buckets for the trailing calendar
// months ending with now's month, oldest first. Months without records are
// zero-filled and their MoM and YoY are 0.
func MonthlySeries(records []models.VisitRecord, months int, now time.Time) []Bucket {
	if months <= 0 {
		return []Bucket{}
	}

	last := models.MonthStart(now)
	first := last.AddDate(0, -(months - 1), 0)
	window := NewDateRange(first, last.AddDate(0, 1, -1))

	found := make(map[string]Bucket)
	for _, b := range Aggregate(records, Month, window) {
		found[b.Key] = b
	}

	out := make([]Bucket, 0, months)
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		key := models.MonthKey(m)
		b, ok := found[key]
		if !ok {
			b = Bucket{Key: key, Label: monthLabel(m)}
		}
		out = append(out, b)
	}
	return out
}

// Cumulative returns a copy of buckets with Cumulative set to the running
// revenue total. Totals are summed from the first bucket on every call and
// never read an existing Cumulative value.
func Cumulative(buckets []Bucket) []Bucket {
	out := make([]Bucket, len(buckets))
	copy(out, buckets)

	var running float64
	for i := range out {
		running += out[i].Revenue
		out[i].Cumulative = running
	}
	return out
}

// TopN returns the n buckets with the highest revenue. Ties keep their
// input order. n <= 0 returns every bucket sorted.
func TopN(buckets []Bucket, n int) []Bucket {
	out := make([]Bucket, len(buckets))
	copy(out, buckets)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Revenue > out[j].Revenue })
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Reconciliation compares bucket totals against raw record revenue
type Reconciliation struct {
	Dimension    Dimension `json:"dimension"`
	RecordTotal  float64   `json:"recordTotal"`
	BucketTotal  float64   `json:"bucketTotal"`
	Difference   float64   `json:"difference"`
	RecordCount  int       `json:"recordCount"`
	SkippedCount int       `json:"skippedCount"`
}

// Balanced reports whether the totals agree to within a yen
func (r Reconciliation) Balanced() bool {
	return math.Abs(r.Difference) < 1
}

// Reconcile aggregates records by dim and compares the bucket revenue with
// the sum of effective revenue. Month skips undated records and Patient
// skips anonymous ones, so they are reported as skipped rather than as a
// difference.
func Reconcile(records []models.VisitRecord, dim Dimension, window *DateRange) Reconciliation {
	in := Filter(records, window)
	rec := Reconciliation{Dimension: dim, RecordCount: len(in)}

	for i := range in {
		if !dim.ItemLevel() {
			if _, _, ok := recordKey(&in[i], dim); !ok {
				rec.SkippedCount++
				continue
			}
		}
		rec.RecordTotal += in[i].EffectiveRevenue()
	}
	for _, b := range Aggregate(records, dim, window) {
		rec.BucketTotal += b.Revenue
	}
	rec.Difference = rec.BucketTotal - rec.RecordTotal
	return rec
}
