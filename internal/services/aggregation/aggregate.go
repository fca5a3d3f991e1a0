package aggregation

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"clinicdash/internal/models"
	"clinicdash/internal/services/classifier"
)

// Bucket is one aggregated group
type Bucket struct {
	Key       string  `json:"key"`
	Label     string  `json:"label"`
	Revenue   float64 `json:"revenue"`
	Count     int     `json:"count"`
	UnitPrice float64 `json:"unitPrice"`

	NewCount        int     `json:"newCount"`
	ExistingCount   int     `json:"existingCount"`
	OtherCount      int     `json:"otherCount"`
	NewRevenue      float64 `json:"newRevenue"`
	ExistingRevenue float64 `json:"existingRevenue"`
	OtherRevenue    float64 `json:"otherRevenue"`

	// Month buckets only
	MoM float64 `json:"mom,omitempty"`
	YoY float64 `json:"yoy,omitempty"`

	Cumulative float64 `json:"cumulative,omitempty"`
}

func (b *Bucket) add(pt models.PatientType, revenue float64, counted bool) {
	b.Revenue += revenue
	switch pt {
	case models.PatientNew:
		b.NewRevenue += revenue
	case models.PatientOther:
		b.OtherRevenue += revenue
	default:
		b.ExistingRevenue += revenue
	}
	if counted {
		return
	}
	b.Count++
	switch pt {
	case models.PatientNew:
		b.NewCount++
	case models.PatientOther:
		b.OtherCount++
	default:
		b.ExistingCount++
	}
}

func (b *Bucket) finish() {
	b.UnitPrice = UnitPrice(b.Revenue, b.Count)
}

// UnitPrice is revenue per visit, 0 when there are no visits
func UnitPrice(revenue float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return revenue / float64(count)
}

// RatioPercent returns current/previous*100, or 0 when previous is 0
func RatioPercent(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	r := current / previous * 100
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// accumulator keeps buckets in first-seen order
type accumulator struct {
	index   map[string]int
	buckets []*Bucket
}

func newAccumulator() *accumulator {
	return &accumulator{index: make(map[string]int)}
}

func (a *accumulator) get(key, label string) *Bucket {
	if i, ok := a.index[key]; ok {
		return a.buckets[i]
	}
	b := &Bucket{Key: key, Label: label}
	a.index[key] = len(a.buckets)
	a.buckets = append(a.buckets, b)
	return b
}

func (a *accumulator) result() []Bucket {
	out := make([]Bucket, len(a.buckets))
	for i, b := range a.buckets {
		b.finish()
		out[i] = *b
	}
	return out
}

// Aggregate groups records by dim. With a window only dated records inside
// it are used; without one, undated records still count for every
// dimension except month. Month buckets compare against every record
// passed in, not only those inside the window.
//
// Staff, category and specialty are item-level: each payment item adds its
// own price to its bucket and a record counts once per bucket it touches.
// A record without items adds its total to the unset staff and
// uncategorized buckets, so every dimension sums to the same revenue.
func Aggregate(records []models.VisitRecord, dim Dimension, window *DateRange) []Bucket {
	in := Filter(records, window)
	acc := newAccumulator()

	for i := range in {
		r := &in[i]
		pt := r.PatientType()

		if dim.ItemLevel() {
			addItems(acc, r, dim, pt)
			continue
		}

		key, label, ok := recordKey(r, dim)
		if !ok {
			continue
		}
		acc.get(key, label).add(pt, r.EffectiveRevenue(), false)
	}

	buckets := acc.result()
	order(buckets, dim)
	switch dim {
	case Month:
		applyComparisons(buckets, monthRevenue(records))
	case PatientType:
		buckets = fillPatientTypes(buckets)
	}
	return buckets
}

func addItems(acc *accumulator, r *models.VisitRecord, dim Dimension, pt models.PatientType) {
	touched := make(map[string]bool)

	if len(r.PaymentItems) == 0 {
		key, label := itemKey(nil, dim)
		acc.get(key, label).add(pt, r.TotalWithTax.Or(0), false)
		return
	}

	for j := range r.PaymentItems {
		item := &r.PaymentItems[j]
		key, label := itemKey(item, dim)
		acc.get(key, label).add(pt, item.PriceWithTax.Or(0), touched[key])
		touched[key] = true
	}
}

func itemKey(item *models.PaymentItem, dim Dimension) (string, string) {
	switch dim {
	case Staff:
		if item == nil {
			return models.UnsetLabel, models.UnsetLabel
		}
		s := item.StaffLabel()
		return s, s
	case Specialty:
		if item == nil {
			return string(classifier.Other), classifier.Other.Label()
		}
		res := classifier.ClassifyItem(*item)
		return string(res.Specialty), res.Specialty.Label()
	default:
		if item == nil {
			return classifier.UncategorizedID, classifier.LabelFor(classifier.UncategorizedID)
		}
		res := classifier.ClassifyItem(*item)
		return res.CategoryID, res.Label
	}
}

func recordKey(r *models.VisitRecord, dim Dimension) (string, string, bool) {
	switch dim {
	case Month:
		d, ok := r.EffectiveDate()
		if !ok {
			return "", "", false
		}
		return models.MonthKey(d), monthLabel(d), true
	case Clinic:
		c := r.ClinicLabel()
		return c, c, true
	case Gender:
		g := r.Gender()
		return string(g), g.Label(), true
	case AgeBand:
		age, ok := r.Age()
		if !ok {
			return models.UnknownAgeBand, models.AgeBandLabel(models.UnknownAgeBand), true
		}
		band := models.AgeBand(age)
		return band, models.AgeBandLabel(band), true
	case PatientType:
		pt := r.PatientType()
		return string(pt), pt.Label(), true
	case ReferralSource:
		s := r.ReferralSource()
		return s, s, true
	case Patient:
		// anonymous visits are not one patient
		key := r.PatientKey()
		if key == models.UnsetLabel {
			return "", "", false
		}
		return key, r.PatientLabel(), true
	}
	return "", "", false
}

func monthLabel(t time.Time) string {
	return fmt.Sprintf("%d年%d月", t.Year(), int(t.Month()))
}

// order sorts buckets whose dimension has a natural order. Clinic, staff,
// referral source and patient keep first-seen order.
func order(buckets []Bucket, dim Dimension) {
	switch dim {
	case Month:
		sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].Key < buckets[j].Key })
	case Category:
		sort.SliceStable(buckets, func(i, j int) bool {
			return categoryRank(buckets[i].Key) < categoryRank(buckets[j].Key)
		})
	case Specialty:
		sort.SliceStable(buckets, func(i, j int) bool {
			return specialtyRank(buckets[i].Key) < specialtyRank(buckets[j].Key)
		})
	case Gender:
		sort.SliceStable(buckets, func(i, j int) bool {
			return genderRank(buckets[i].Key) < genderRank(buckets[j].Key)
		})
	case AgeBand:
		sort.SliceStable(buckets, func(i, j int) bool {
			return ageBandRank(buckets[i].Key) < ageBandRank(buckets[j].Key)
		})
	}
}

var categoryRanks = func() map[string]int {
	ranks := make(map[string]int)
	for i, c := range classifier.Categories() {
		ranks[c.ID] = i
	}
	return ranks
}()

func categoryRank(id string) int {
	if r, ok := categoryRanks[id]; ok {
		return r
	}
	return len(categoryRanks)
}

func specialtyRank(key string) int {
	for i, s := range classifier.Specialties {
		if string(s) == key {
			return i
		}
	}
	return len(classifier.Specialties)
}

func genderRank(key string) int {
	for i, g := range models.Genders {
		if string(g) == key {
			return i
		}
	}
	return len(models.Genders)
}

func ageBandRank(key string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(key, "s"))
	if err != nil {
		return math.MaxInt
	}
	return n
}

// fillPatientTypes returns exactly one bucket per patient type in display
// order.
func fillPatientTypes(found []Bucket) []Bucket {
	byKey := make(map[string]Bucket, len(found))
	for _, b := range found {
		byKey[b.Key] = b
	}

	out := make([]Bucket, 0, len(models.PatientTypes))
	for _, pt := range models.PatientTypes {
		b, ok := byKey[string(pt)]
		if !ok {
			b = Bucket{Key: string(pt), Label: pt.Label()}
		}
		out = append(out, b)
	}
	return out
}

// Total sums revenue and visits across the records in the window
func Total(records []models.VisitRecord, window *DateRange) Bucket {
	b := Bucket{Key: "total", Label: "合計"}
	for _, r := range Filter(records, window) {
		b.add(r.PatientType(), r.EffectiveRevenue(), false)
	}
	b.finish()
	return b
}
