package aggregation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"clinicdash/internal/models"
)

// ErrUnknownDimension is returned by ParseDimension
var ErrUnknownDimension = errors.New("unknown dimension")

// Dimension is a grouping key for Aggregate
type Dimension string

const (
	Month          Dimension = "month"
	Clinic         Dimension = "clinic"
	Staff          Dimension = "staff"
	Category       Dimension = "category"
	Specialty      Dimension = "specialty"
	Gender         Dimension = "gender"
	AgeBand        Dimension = "age_band"
	PatientType    Dimension = "patient_type"
	ReferralSource Dimension = "referral_source"
	Patient        Dimension = "patient"
)

// Dimensions lists every supported dimension
var Dimensions = []Dimension{Month, Clinic, Staff, Category, Specialty, Gender, AgeBand, PatientType, ReferralSource, Patient}

var dimensionLabels = map[Dimension]string{
	Month:          "月",
	Clinic:         "院",
	Staff:          "担当者",
	Category:       "施術カテゴリ",
	Specialty:      "診療科",
	Gender:         "性別",
	AgeBand:        "年代",
	PatientType:    "患者区分",
	ReferralSource: "流入元",
	Patient:        "患者",
}

// Label returns the Japanese display name of the dimension
func (d Dimension) Label() string {
	if l, ok := dimensionLabels[d]; ok {
		return l
	}
	return string(d)
}

var dimensionAliases = map[string]Dimension{
	"categoryid":     Category,
	"ageband":        AgeBand,
	"age":            AgeBand,
	"patienttype":    PatientType,
	"referralsource": ReferralSource,
	"referral":       ReferralSource,
	"visitor":        Patient,
}

// ParseDimension accepts the canonical names plus the camelCase spellings
// used by the front end.
func ParseDimension(s string) (Dimension, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, d := range Dimensions {
		if string(d) == key {
			return d, nil
		}
	}
	if d, ok := dimensionAliases[strings.ReplaceAll(key, "_", "")]; ok {
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDimension, s)
}

// ItemLevel reports whether the dimension is keyed by payment item rather
// than by record.
func (d Dimension) ItemLevel() bool {
	return d == Staff || d == Category || d == Specialty
}

// DateRange is an inclusive range of calendar days in models.Location
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange normalizes start and end to whole days
func NewDateRange(start, end time.Time) *DateRange {
	start, end = start.In(models.Location), end.In(models.Location)
	return &DateRange{
		Start: time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, models.Location),
		End:   time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 999999999, models.Location),
	}
}

// MonthRange covers the whole calendar month containing t
func MonthRange(t time.Time) *DateRange {
	start := models.MonthStart(t)
	return NewDateRange(start, start.AddDate(0, 1, -1))
}

// Contains reports whether t falls inside the range
func (r *DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Days returns the number of calendar days covered
func (r *DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Previous returns the range of equal length ending the day before Start
func (r *DateRange) Previous() *DateRange {
	end := r.Start.AddDate(0, 0, -1)
	return NewDateRange(end.AddDate(0, 0, -(r.Days()-1)), end)
}

// YearBefore shifts the range back twelve months
func (r *DateRange) YearBefore() *DateRange {
	return NewDateRange(r.Start.AddDate(-1, 0, 0), r.End.AddDate(-1, 0, 0))
}

// Filter returns the records inside the window. A nil window keeps every
// record, dated or not.
func Filter(records []models.VisitRecord, window *DateRange) []models.VisitRecord {
	if window == nil {
		return records
	}
	out := make([]models.VisitRecord, 0, len(records))
	for _, r := range records {
		if d, ok := r.EffectiveDate(); ok && window.Contains(d) {
			out = append(out, r)
		}
	}
	return out
}
