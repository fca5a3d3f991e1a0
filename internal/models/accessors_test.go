package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(category, name string, price float64, staff string) PaymentItem {
	return PaymentItem{Category: Text(category), Name: Text(name), PriceWithTax: NewNumber(price), MainStaffName: Text(staff)}
}

func TestEffectiveRevenue(t *testing.T) {
	tests := []struct {
		name     string
		record   VisitRecord
		expected float64
	}{
		{
			name: "items win over total",
			record: VisitRecord{
				TotalWithTax: NewNumber(999),
				PaymentItems: []PaymentItem{item("", "a", 100, ""), item("", "b", 200, "")},
			},
			expected: 300,
		},
		{
			name:     "total without items",
			record:   VisitRecord{TotalWithTax: NewNumber(500)},
			expected: 500,
		},
		{
			name:     "nothing",
			record:   VisitRecord{},
			expected: 0,
		},
		{
			name: "item without price counts as zero",
			record: VisitRecord{
				TotalWithTax: NewNumber(999),
				PaymentItems: []PaymentItem{{Name: "a"}, item("", "b", 50, "")},
			},
			expected: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.record.EffectiveRevenue())
		})
	}
}

func TestEffectiveDate(t *testing.T) {
	tests := []struct {
		name     string
		record   VisitRecord
		expected string
		ok       bool
	}{
		{"record date first", VisitRecord{RecordDate: "2024-03-01", VisitDate: "2024-04-01"}, "2024-03-01", true},
		{"falls back past garbage", VisitRecord{RecordDate: "??", VisitDate: "2024/04/02"}, "2024-04-02", true},
		{"treatment date", VisitRecord{TreatmentDate: "2024年5月3日"}, "2024-05-03", true},
		{"accounting date", VisitRecord{AccountingDate: "20240604"}, "2024-06-04", true},
		{"no date", VisitRecord{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.record.EffectiveDate()
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.expected, got.Format("2006-01-02"))
				assert.Equal(t, Location, got.Location())
			}
		})
	}
}

func TestClinicLabel(t *testing.T) {
	tests := []struct {
		record   VisitRecord
		expected string
	}{
		{VisitRecord{ClinicName: "大宮院", ClinicID: "mito"}, "大宮院"},
		{VisitRecord{ClinicID: "yokohama"}, "横浜院"},
		{VisitRecord{ClinicID: "KORIYAMA"}, "郡山院"},
		{VisitRecord{ClinicID: "mito"}, "水戸院"},
		{VisitRecord{ClinicID: "omiya"}, "大宮院"},
		{VisitRecord{ClinicID: "osaka"}, UnsetLabel},
		{VisitRecord{}, UnsetLabel},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.record.ClinicLabel())
		})
	}
}

func TestPatientType(t *testing.T) {
	tests := []struct {
		name     string
		record   VisitRecord
		expected PatientType
	}{
		{"piercing tag beats first visit", VisitRecord{PaymentTags: "ピアス", IsFirst: NewFlag(true)}, PatientOther},
		{"retail in name", VisitRecord{VisitorName: "物販 山田", IsFirst: NewFlag(true)}, PatientOther},
		{"anesthesia pack tag", VisitRecord{PaymentTags: "初回,麻酔針パック"}, PatientOther},
		{"half-width piercing", VisitRecord{PaymentTags: "ﾋﾟｱｽ"}, PatientOther},
		{"first visit", VisitRecord{IsFirst: NewFlag(true)}, PatientNew},
		{"alternate flag", VisitRecord{IsFirstVisit: NewFlag(true)}, PatientNew},
		{"isFirst wins over alternate", VisitRecord{IsFirst: NewFlag(false), IsFirstVisit: NewFlag(true)}, PatientExisting},
		{"returning", VisitRecord{IsFirst: NewFlag(false)}, PatientExisting},
		{"no flag", VisitRecord{}, PatientExisting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.record.PatientType())
		})
	}
}

func TestAge(t *testing.T) {
	tests := []struct {
		name   string
		record VisitRecord
		age    int
		ok     bool
	}{
		{"visitorAge", VisitRecord{VisitorAge: NewNumber(34), AgeAlt: NewNumber(50)}, 34, true},
		{"age fallback", VisitRecord{AgeAlt: NewNumber(50)}, 50, true},
		{"patientAge fallback", VisitRecord{PatientAge: NewNumber(61)}, 61, true},
		{"out of range", VisitRecord{VisitorAge: NewNumber(150)}, 0, false},
		{"missing", VisitRecord{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			age, ok := tt.record.Age()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.age, age)
		})
	}
}

func TestGenderAndReferral(t *testing.T) {
	assert.Equal(t, GenderFemale, (&VisitRecord{VisitorGender: "女性"}).Gender())
	assert.Equal(t, GenderMale, (&VisitRecord{VisitorGender: "Male"}).Gender())
	assert.Equal(t, GenderUnknown, (&VisitRecord{}).Gender())

	assert.Equal(t, "Instagram", (&VisitRecord{VisitorInflowSourceName: "Instagram", ReservationInflowPathLabel: "Web"}).ReferralSource())
	assert.Equal(t, "Web", (&VisitRecord{ReservationInflowPathLabel: "Web"}).ReferralSource())
	assert.Equal(t, UnsetLabel, (&VisitRecord{}).ReferralSource())
}

func TestAgeBand(t *testing.T) {
	assert.Equal(t, "30s", AgeBand(34))
	assert.Equal(t, "0s", AgeBand(7))
	assert.Equal(t, "30代", AgeBandLabel("30s"))
	assert.Equal(t, "不明", AgeBandLabel(UnknownAgeBand))
}

func TestRecordSetFilterByDateRange(t *testing.T) {
	rs := NewRecordSet([]VisitRecord{
		{VisitorName: "a", RecordDate: "2024-01-01"},
		{VisitorName: "b", RecordDate: "2024-01-31"},
		{VisitorName: "c", RecordDate: "2024-02-01"},
		{VisitorName: "undated"},
	})

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, Location)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, Location)
	got := rs.FilterByDateRange(start, end)

	assert.Equal(t, 2, got.Len())
	assert.Equal(t, "a", got.Records[0].VisitorName.String())
	assert.Equal(t, "b", got.Records[1].VisitorName.String())
}

func TestRecordSetPaginate(t *testing.T) {
	records := make([]VisitRecord, 7)
	rs := NewRecordSet(records)

	assert.Equal(t, 3, rs.Paginate(1, 3).Len())
	assert.Equal(t, 1, rs.Paginate(3, 3).Len())
	assert.Equal(t, 0, rs.Paginate(4, 3).Len())
	assert.Equal(t, 3, rs.TotalPages(3))
}

func TestRecordSetPageSizeBounds(t *testing.T) {
	rs := NewRecordSet(make([]VisitRecord, 1200))

	tests := []struct {
		name    string
		perPage int
		size    int
		pages   int
	}{
		{"default when zero", 0, DefaultPerPage, 24},
		{"default when negative", -5, DefaultPerPage, 24},
		{"within range", 100, 100, 12},
		{"capped", 100000, MaxPerPage, 3},
		{"capped near max int", math.MaxInt, MaxPerPage, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.size, PageSize(tt.perPage))
			assert.Equal(t, tt.pages, rs.TotalPages(tt.perPage))
			assert.Equal(t, tt.size, rs.Paginate(1, tt.perPage).Len())
		})
	}

	assert.Equal(t, 0, rs.Paginate(math.MaxInt, MaxPerPage).Len())
	assert.Equal(t, 200, rs.Paginate(3, MaxPerPage).Len())
}

func TestRecordSetSearchAndSort(t *testing.T) {
	rs := NewRecordSet([]VisitRecord{
		{VisitorName: "old", RecordDate: "2024-01-01", PaymentItems: []PaymentItem{item("皮膚科", "ボトックス", 1, "佐藤")}},
		{VisitorName: "undated"},
		{VisitorName: "new", RecordDate: "2024-05-01"},
	})

	sorted := rs.SortByDateDesc()
	assert.Equal(t, "new", sorted.Records[0].VisitorName.String())
	assert.Equal(t, "old", sorted.Records[1].VisitorName.String())
	assert.Equal(t, "undated", sorted.Records[2].VisitorName.String())

	found := rs.FilterBySearch("佐藤")
	assert.Equal(t, 1, found.Len())
	assert.Equal(t, "old", found.Records[0].VisitorName.String())
}

func hash(t *testing.T, r VisitRecord) string {
	t.Helper()
	h, ok := r.ComputeHash()
	require.True(t, ok)
	return h
}

func TestComputeHashStable(t *testing.T) {
	a := VisitRecord{VisitorName: "山田", RecordDate: "2024-01-01", TotalWithTax: NewNumber(1000)}
	b := VisitRecord{VisitorName: "山田", VisitDate: "2024/01/01", TotalWithTax: NewNumber(1000)}

	assert.Equal(t, hash(t, a), hash(t, b))

	tests := []struct {
		name  string
		other VisitRecord
	}{
		{"date", VisitRecord{VisitorName: "山田", RecordDate: "2024-01-02", TotalWithTax: NewNumber(1000)}},
		{"clinic", VisitRecord{VisitorName: "山田", RecordDate: "2024-01-01", ClinicName: "横浜院", TotalWithTax: NewNumber(1000)}},
		{"staff", VisitRecord{VisitorName: "山田", RecordDate: "2024-01-01",
			PaymentItems: []PaymentItem{item("", "", 1000, "佐藤")}}},
		{"item prices", VisitRecord{VisitorName: "山田", RecordDate: "2024-01-01",
			PaymentItems: []PaymentItem{item("", "", 400, ""), item("", "", 600, "")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, hash(t, a), hash(t, tt.other))
		})
	}
}

func TestComputeHashNeedsIdentity(t *testing.T) {
	tests := []struct {
		name   string
		record VisitRecord
	}{
		{"anonymous", VisitRecord{RecordDate: "2024-01-01", TotalWithTax: NewNumber(5000)}},
		{"undated", VisitRecord{VisitorName: "山田", TotalWithTax: NewNumber(5000)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := tt.record.ComputeHash()
			assert.False(t, ok)
		})
	}
}

func TestDeduplicate(t *testing.T) {
	records := []VisitRecord{
		{VisitorName: "山田", RecordDate: "2024-01-01", TotalWithTax: NewNumber(1000)},
		{VisitorName: "山田", VisitDate: "2024/01/01", TotalWithTax: NewNumber(1000)},
		{TotalWithTax: NewNumber(5000)},
		{TotalWithTax: NewNumber(5000)},
		{TotalWithTax: NewNumber(5000), ClinicName: "横浜院"},
	}

	unique := Deduplicate(records)
	assert.Len(t, unique, 4)
	assert.Equal(t, 16000.0, NewRecordSet(unique).SumRevenue())
}
