package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// RecordSource tells where a visit record came from
type RecordSource string

const (
	SourceAPI RecordSource = "api"
	SourceCSV RecordSource = "csv"
)

// PaymentItem is one billed line of a visit
type PaymentItem struct {
	Category           Text   `json:"category"`
	Name               Text   `json:"name"`
	PriceWithTax       Number `json:"priceWithTax"`
	MainStaffName      Text   `json:"mainStaffName"`
	IsAdvancePayment   Flag   `json:"isAdvancePayment"`
	AdvancePaymentDate Text   `json:"advancePaymentDate,omitempty"`
}

// VisitRecord is one accounting record as delivered by the
// practice-management API or produced by a CSV import. Several fields have
// alternate spellings across API versions; use the accessor methods rather
// than reading them directly.
type VisitRecord struct {
	VisitorID     Text   `json:"visitorId"`
	VisitorName   Text   `json:"visitorName"`
	VisitorAge    Number `json:"visitorAge"`
	AgeAlt        Number `json:"age"`
	PatientAge    Number `json:"patientAge"`
	VisitorGender Text   `json:"visitorGender"`

	RecordDate     Text `json:"recordDate"`
	VisitDate      Text `json:"visitDate"`
	TreatmentDate  Text `json:"treatmentDate"`
	AccountingDate Text `json:"accountingDate"`

	ClinicName Text `json:"clinicName"`
	ClinicID   Text `json:"clinicId"`

	IsFirst      Flag `json:"isFirst"`
	IsFirstVisit Flag `json:"isFirstVisit"`
	PaymentTags  Text `json:"paymentTags"`

	VisitorInflowSourceName    Text `json:"visitorInflowSourceName"`
	ReservationInflowPathLabel Text `json:"reservationInflowPathLabel"`

	TotalWithTax Number        `json:"totalWithTax"`
	PaymentItems []PaymentItem `json:"paymentItems"`

	Source RecordSource `json:"source,omitempty"`
}

// ComputeHash generates a key for duplicate detection from patient, date,
// clinic, revenue and every item's category, name, staff and price. ok is
// false for anonymous or undated records: nothing identifies them, so two
// of them are always distinct visits.
func (r *VisitRecord) ComputeHash() (string, bool) {
	patient := r.PatientKey()
	d, dated := r.EffectiveDate()
	if patient == UnsetLabel || !dated {
		return "", false
	}

	items := make([]string, 0, len(r.PaymentItems))
	for i := range r.PaymentItems {
		item := &r.PaymentItems[i]
		items = append(items, fmt.Sprintf("%s/%s/%s/%.2f",
			Normalize(item.Category.String()), Normalize(item.Name.String()),
			Normalize(item.StaffLabel()), item.PriceWithTax.Or(0)))
	}

	input := fmt.Sprintf("%s|%s|%s|%.2f|%s",
		Normalize(patient), d.Format("2006-01-02"), Normalize(r.ClinicLabel()),
		r.EffectiveRevenue(), strings.Join(items, ","))
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:8]), true
}

// Deduplicate keeps the first of each group of records with the same hash.
// Records without a hash are always kept.
func Deduplicate(records []VisitRecord) []VisitRecord {
	seen := make(map[string]bool)
	unique := make([]VisitRecord, 0, len(records))

	for _, r := range records {
		h, ok := r.ComputeHash()
		if ok && seen[h] {
			continue
		}
		if ok {
			seen[h] = true
		}
		unique = append(unique, r)
	}
	return unique
}

// RecordSet wraps a slice of records with filtering helpers
type RecordSet struct {
	Records []VisitRecord
}

// NewRecordSet creates a new RecordSet from a slice
func NewRecordSet(records []VisitRecord) *RecordSet {
	return &RecordSet{Records: records}
}

// Len returns the number of records
func (rs *RecordSet) Len() int {
	return len(rs.Records)
}

// FilterByDateRange returns dated records within the range (inclusive
// days). Records without a usable date are dropped.
func (rs *RecordSet) FilterByDateRange(start, end time.Time) *RecordSet {
	result := &RecordSet{}
	start, end = start.In(Location), end.In(Location)
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, Location)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 999999999, Location)

	for _, r := range rs.Records {
		d, ok := r.EffectiveDate()
		if !ok {
			continue
		}
		if !d.Before(startDay) && !d.After(endDay) {
			result.Records = append(result.Records, r)
		}
	}
	return result
}

// FilterByClinic returns records whose clinic label matches
func (rs *RecordSet) FilterByClinic(clinic string) *RecordSet {
	result := &RecordSet{}
	want := Normalize(clinic)
	for _, r := range rs.Records {
		if Normalize(r.ClinicLabel()) == want {
			result.Records = append(result.Records, r)
		}
	}
	return result
}

// FilterBySearch matches the term against patient, staff and treatment
// names.
func (rs *RecordSet) FilterBySearch(search string) *RecordSet {
	result := &RecordSet{}
	term := Normalize(search)
	for _, r := range rs.Records {
		if r.matches(term) {
			result.Records = append(result.Records, r)
		}
	}
	return result
}

func (r *VisitRecord) matches(term string) bool {
	if strings.Contains(Normalize(r.VisitorName.String()), term) ||
		strings.Contains(Normalize(r.VisitorID.String()), term) {
		return true
	}
	for _, item := range r.PaymentItems {
		if strings.Contains(Normalize(item.Name.String()), term) ||
			strings.Contains(Normalize(item.Category.String()), term) ||
			strings.Contains(Normalize(item.MainStaffName.String()), term) {
			return true
		}
	}
	return false
}

// SumRevenue returns the total effective revenue
func (rs *RecordSet) SumRevenue() float64 {
	var sum float64
	for _, r := range rs.Records {
		sum += r.EffectiveRevenue()
	}
	return sum
}

// SortByDateDesc sorts records newest first; undated records go last
func (rs *RecordSet) SortByDateDesc() *RecordSet {
	sorted := make([]VisitRecord, len(rs.Records))
	copy(sorted, rs.Records)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, iok := sorted[i].EffectiveDate()
		dj, jok := sorted[j].EffectiveDate()
		if iok != jok {
			return iok
		}
		return di.After(dj)
	})
	return &RecordSet{Records: sorted}
}

// MinDate returns the earliest effective date
func (rs *RecordSet) MinDate() time.Time {
	var minDate time.Time
	for _, r := range rs.Records {
		d, ok := r.EffectiveDate()
		if ok && (minDate.IsZero() || d.Before(minDate)) {
			minDate = d
		}
	}
	return minDate
}

// MaxDate returns the latest effective date
func (rs *RecordSet) MaxDate() time.Time {
	var maxDate time.Time
	for _, r := range rs.Records {
		d, ok := r.EffectiveDate()
		if ok && d.After(maxDate) {
			maxDate = d
		}
	}
	return maxDate
}

// Clinics returns a sorted list of unique clinic labels
func (rs *RecordSet) Clinics() []string {
	seen := make(map[string]bool)
	for _, r := range rs.Records {
		seen[r.ClinicLabel()] = true
	}

	clinics := make([]string, 0, len(seen))
	for c := range seen {
		clinics = append(clinics, c)
	}
	sort.Strings(clinics)
	return clinics
}

// Page size bounds shared by the records list and its pagination
const (
	DefaultPerPage = 50
	MaxPerPage     = 500
)

// PageSize clamps a requested page size into [1, MaxPerPage]
func PageSize(perPage int) int {
	switch {
	case perPage < 1:
		return DefaultPerPage
	case perPage > MaxPerPage:
		return MaxPerPage
	}
	return perPage
}

// Paginate returns a slice of records for the given page
func (rs *RecordSet) Paginate(page, perPage int) *RecordSet {
	perPage = PageSize(perPage)
	if page < 1 {
		page = 1
	}
	if page > rs.TotalPages(perPage) {
		return &RecordSet{}
	}

	start := (page - 1) * perPage
	end := start + perPage
	if end > len(rs.Records) {
		end = len(rs.Records)
	}

	return &RecordSet{Records: rs.Records[start:end]}
}

// TotalPages returns the number of pages for the given page size
func (rs *RecordSet) TotalPages(perPage int) int {
	perPage = PageSize(perPage)
	return (len(rs.Records) + perPage - 1) / perPage
}
