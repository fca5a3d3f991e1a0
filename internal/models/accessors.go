package models

import (
	"fmt"
	"strings"
	"time"
)

// PatientType is the new / existing / other split of a visit
type PatientType string

const (
	PatientNew      PatientType = "new"
	PatientExisting PatientType = "existing"
	PatientOther    PatientType = "other"
)

// PatientTypes lists patient types in display order
var PatientTypes = []PatientType{PatientNew, PatientExisting, PatientOther}

// Label returns the Japanese display label
func (p PatientType) Label() string {
	switch p {
	case PatientNew:
		return "新規"
	case PatientExisting:
		return "既存"
	default:
		return "その他"
	}
}

// Gender is the normalized visitor gender
type Gender string

const (
	GenderFemale  Gender = "female"
	GenderMale    Gender = "male"
	GenderUnknown Gender = "unknown"
)

// Genders lists genders in display order
var Genders = []Gender{GenderFemale, GenderMale, GenderUnknown}

// Label returns the Japanese display label
func (g Gender) Label() string {
	switch g {
	case GenderFemale:
		return "女性"
	case GenderMale:
		return "男性"
	default:
		return "不明"
	}
}

// MaxAge is the largest age accepted as real data
const MaxAge = 120

// clinicIDs maps API clinic ids to display names
var clinicIDs = map[string]string{
	"yokohama": "横浜院",
	"koriyama": "郡山院",
	"mito":     "水戸院",
	"omiya":    "大宮院",
}

// otherMarkers put a visit into the "other" patient type whatever its
// first-visit flag says.
var otherMarkers = []string{"ピアス", "物販", "麻酔針パック"}

// EffectiveDate returns the first of recordDate, visitDate, treatmentDate
// and accountingDate that parses.
func (r *VisitRecord) EffectiveDate() (time.Time, bool) {
	for _, field := range []Text{r.RecordDate, r.VisitDate, r.TreatmentDate, r.AccountingDate} {
		if t, ok := ParseDate(field.String()); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// EffectiveRevenue is the sum of item prices when the record has items,
// otherwise totalWithTax, otherwise 0.
func (r *VisitRecord) EffectiveRevenue() float64 {
	if len(r.PaymentItems) > 0 {
		var sum float64
		for _, item := range r.PaymentItems {
			sum += item.PriceWithTax.Or(0)
		}
		return sum
	}
	return r.TotalWithTax.Or(0)
}

// ClinicLabel returns the clinic display name
func (r *VisitRecord) ClinicLabel() string {
	if name := r.ClinicName.String(); name != "" {
		return name
	}
	if label, ok := clinicIDs[Normalize(r.ClinicID.String())]; ok {
		return label
	}
	return UnsetLabel
}

// PatientType classifies the visit. Other markers in the payment tags or
// visitor name win over the first-visit flag.
func (r *VisitRecord) PatientType() PatientType {
	tags := Normalize(r.PaymentTags.String())
	name := Normalize(r.VisitorName.String())
	for _, marker := range otherMarkers {
		if strings.Contains(tags, marker) || strings.Contains(name, marker) {
			return PatientOther
		}
	}

	first := r.IsFirst
	if !first.Valid {
		first = r.IsFirstVisit
	}
	if first.Valid && first.Value {
		return PatientNew
	}
	return PatientExisting
}

// Age returns the first present of visitorAge, age and patientAge when it
// lies within 0..MaxAge.
func (r *VisitRecord) Age() (int, bool) {
	for _, n := range []Number{r.VisitorAge, r.AgeAlt, r.PatientAge} {
		if !n.Valid {
			continue
		}
		if n.Value < 0 || n.Value > MaxAge {
			return 0, false
		}
		return int(n.Value), true
	}
	return 0, false
}

// Gender normalizes visitorGender
func (r *VisitRecord) Gender() Gender {
	switch Normalize(r.VisitorGender.String()) {
	case "female", "f", "woman", "女", "女性", "2":
		return GenderFemale
	case "male", "m", "man", "男", "男性", "1":
		return GenderMale
	default:
		return GenderUnknown
	}
}

// ReferralSource returns the inflow source, falling back to the
// reservation path label.
func (r *VisitRecord) ReferralSource() string {
	if s := r.VisitorInflowSourceName.String(); s != "" {
		return s
	}
	if s := r.ReservationInflowPathLabel.String(); s != "" {
		return s
	}
	return UnsetLabel
}

// PatientKey identifies the patient for repeat and ranking purposes
func (r *VisitRecord) PatientKey() string {
	if id := r.VisitorID.String(); id != "" {
		return id
	}
	if name := r.VisitorName.String(); name != "" {
		return name
	}
	return UnsetLabel
}

// PatientLabel is the name shown for the patient in rankings
func (r *VisitRecord) PatientLabel() string {
	if name := r.VisitorName.String(); name != "" {
		return name
	}
	return r.PatientKey()
}

// StaffLabel returns the main staff member or the unset label
func (p *PaymentItem) StaffLabel() string {
	if s := p.MainStaffName.String(); s != "" {
		return s
	}
	return UnsetLabel
}

// AgeBand returns the 10-year band key for an age, e.g. "30s"
func AgeBand(age int) string {
	return fmt.Sprintf("%ds", age/10*10)
}

// AgeBandLabel returns the Japanese label for a band key, e.g. "30代"
func AgeBandLabel(band string) string {
	if band == UnknownAgeBand {
		return "不明"
	}
	return strings.TrimSuffix(band, "s") + "代"
}

// UnknownAgeBand is the band for records without a usable age
const UnknownAgeBand = "unknown"
