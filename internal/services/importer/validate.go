package importer

import (
	"fmt"
	"strings"

	"clinicdash/internal/models"
)

// Severity of a validation issue
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// IssueCode identifies the kind of validation issue
type IssueCode string

const (
	MissingPatientCode       IssueCode = "MISSING_PATIENT_CODE"
	MissingAge               IssueCode = "MISSING_AGE"
	MissingReferralSource    IssueCode = "MISSING_REFERRAL_SOURCE"
	MissingAppointmentRoute  IssueCode = "MISSING_APPOINTMENT_ROUTE"
	MissingTreatmentCategory IssueCode = "MISSING_TREATMENT_CATEGORY"
	MissingStaff             IssueCode = "MISSING_STAFF"
	InvalidData              IssueCode = "INVALID_DATA"
	DuplicateData            IssueCode = "DUPLICATE_DATA"
)

// Issue is one validation finding on a row
type Issue struct {
	Line     int       `json:"line"`
	Field    string    `json:"field"`
	Column   string    `json:"column"`
	Code     IssueCode `json:"code"`
	Severity Severity  `json:"severity"`
	Value    string    `json:"value"`
	Message  string    `json:"message"`
}

func newIssue(line int, field string, code IssueCode, sev Severity, value, message string) Issue {
	return Issue{
		Line:     line,
		Field:    field,
		Column:   ColumnLabel(field),
		Code:     code,
		Severity: sev,
		Value:    value,
		Message:  message,
	}
}

// validateRow checks a row's fields. present lists the fields the header
// carried; optional columns are only checked when the file has them.
func validateRow(line int, fields map[string]string, present map[string]bool) []Issue {
	var issues []Issue
	add := func(field string, code IssueCode, sev Severity, message string) {
		issues = append(issues, newIssue(line, field, code, sev, fields[field], message))
	}

	if fields[FieldName] == "" {
		add(FieldName, MissingPatientCode, SeverityError, "患者名がありません")
	}

	if fields[FieldStaff] == "" {
		add(FieldStaff, MissingStaff, SeverityWarning, "担当者が未入力です")
	}

	for _, field := range []string{FieldVisitDate, FieldAccountingDate} {
		if v := fields[field]; v != "" {
			if _, ok := models.ParseDate(v); !ok {
				add(field, InvalidData, SeverityError, fmt.Sprintf("日付を解釈できません: %s", v))
			}
		}
	}
	if fields[FieldVisitDate] == "" && fields[FieldAccountingDate] == "" {
		add(FieldVisitDate, InvalidData, SeverityError, "来院日がありません")
	}

	if present[FieldAge] {
		age, ok := models.ParseInt(fields[FieldAge])
		if !ok || age < 0 || age > models.MaxAge {
			add(FieldAge, MissingAge, SeverityError, fmt.Sprintf("年齢は0〜%dの整数で入力してください", models.MaxAge))
		}
	}

	if _, ok := models.ParseAmount(fields[FieldTotal]); !ok {
		add(FieldTotal, InvalidData, SeverityError, "合計金額を数値として解釈できません")
	}

	if fields[FieldCategory] == "" && fields[FieldTreatment] == "" {
		add(FieldCategory, MissingTreatmentCategory, SeverityWarning, "施術カテゴリが未入力です")
	}

	if present[FieldReferral] && fields[FieldReferral] == "" {
		add(FieldReferral, MissingReferralSource, SeverityWarning, "流入元が未入力です")
	}

	if present[FieldRoute] && fields[FieldRoute] == "" {
		add(FieldRoute, MissingAppointmentRoute, SeverityWarning, "予約経路が未入力です")
	}

	return issues
}

// duplicateKey identifies a row for DUPLICATE_DATA detection
func duplicateKey(fields map[string]string) string {
	date := fields[FieldVisitDate]
	if d, ok := models.ParseDate(date); ok {
		date = d.Format("2006-01-02")
	}
	total := fields[FieldTotal]
	if v, ok := models.ParseAmount(total); ok {
		total = fmt.Sprintf("%.0f", v)
	}
	return strings.Join([]string{
		models.Normalize(fields[FieldName]),
		date,
		total,
		models.Normalize(fields[FieldTreatment]),
	}, "|")
}

// buildRecord converts validated fields into a visit record
func buildRecord(fields map[string]string) models.VisitRecord {
	r := models.VisitRecord{
		VisitorID:                  models.Text(fields[FieldPatientID]),
		VisitorName:                models.Text(fields[FieldName]),
		VisitorGender:              models.Text(fields[FieldGender]),
		VisitDate:                  models.Text(fields[FieldVisitDate]),
		AccountingDate:             models.Text(fields[FieldAccountingDate]),
		ClinicName:                 models.Text(fields[FieldClinic]),
		IsFirst:                    models.ParseFlag(fields[FieldPatientType]),
		PaymentTags:                models.Text(fields[FieldTags]),
		VisitorInflowSourceName:    models.Text(fields[FieldReferral]),
		ReservationInflowPathLabel: models.Text(fields[FieldRoute]),
		Source:                     models.SourceCSV,
	}

	if age, ok := models.ParseInt(fields[FieldAge]); ok {
		r.VisitorAge = models.NewNumber(float64(age))
	}
	if total, ok := models.ParseAmount(fields[FieldTotal]); ok {
		r.TotalWithTax = models.NewNumber(total)
	}

	if fields[FieldCategory] != "" || fields[FieldTreatment] != "" || fields[FieldStaff] != "" {
		r.PaymentItems = []models.PaymentItem{{
			Category:      models.Text(fields[FieldCategory]),
			Name:          models.Text(fields[FieldTreatment]),
			PriceWithTax:  r.TotalWithTax,
			MainStaffName: models.Text(fields[FieldStaff]),
		}}
	}
	return r
}
