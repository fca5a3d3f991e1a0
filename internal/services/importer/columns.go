package importer

import (
	"strings"

	"clinicdash/internal/models"
)

// Canonical field names for CSV columns
const (
	FieldName           = "name"
	FieldPatientID      = "patientId"
	FieldStaff          = "staff"
	FieldClinic         = "clinic"
	FieldVisitDate      = "visitDate"
	FieldAccountingDate = "accountingDate"
	FieldAge            = "age"
	FieldGender         = "gender"
	FieldTotal          = "total"
	FieldPatientType    = "patientType"
	FieldCategory       = "category"
	FieldTreatment      = "treatment"
	FieldReferral       = "referral"
	FieldRoute          = "route"
	FieldTags           = "tags"
)

// columnMappings maps the Japanese headers seen in practice-management
// exports to canonical field names. Headers are compared after
// models.Normalize, so full-width variants such as "Ｕ／Ｃ" match too.
var columnMappings = map[string][]string{
	FieldName:           {"名前", "患者名", "氏名", "顧客名", "name"},
	FieldPatientID:      {"患者コード", "患者id", "顧客コード", "カルテ番号", "診察券番号"},
	FieldStaff:          {"担当者", "担当", "施術者", "スタッフ", "担当スタッフ"},
	FieldClinic:         {"院", "院名", "クリニック", "店舗"},
	FieldVisitDate:      {"来院日", "施術日", "日付", "来店日"},
	FieldAccountingDate: {"会計日", "会計日時"},
	FieldAge:            {"年齢"},
	FieldGender:         {"性別"},
	FieldTotal:          {"合計", "売上", "金額", "税込金額", "合計金額"},
	FieldPatientType:    {"u/c", "新規/既存", "区分", "初診/再診"},
	FieldCategory:       {"施術カテゴリ", "大分類", "カテゴリ", "診療科"},
	FieldTreatment:      {"施術名", "施術内容", "メニュー", "施術"},
	FieldReferral:       {"流入元", "来院経路", "媒体", "来院きっかけ"},
	FieldRoute:          {"予約経路"},
	FieldTags:           {"タグ", "会計タグ"},
}

// columnLabels is the header written back for each field
var columnLabels = map[string]string{
	FieldName:           "名前",
	FieldPatientID:      "患者コード",
	FieldStaff:          "担当者",
	FieldClinic:         "院",
	FieldVisitDate:      "来院日",
	FieldAccountingDate: "会計日",
	FieldAge:            "年齢",
	FieldGender:         "性別",
	FieldTotal:          "合計",
	FieldPatientType:    "U/C",
	FieldCategory:       "施術カテゴリ",
	FieldTreatment:      "施術名",
	FieldReferral:       "流入元",
	FieldRoute:          "予約経路",
	FieldTags:           "タグ",
}

// ColumnLabel returns the Japanese header for a canonical field
func ColumnLabel(field string) string {
	if label, ok := columnLabels[field]; ok {
		return label
	}
	return field
}

// normalizeColumnName maps a CSV header to its canonical field name, or
// returns "" for an unknown column.
func normalizeColumnName(col string) string {
	col = models.Normalize(strings.TrimPrefix(col, "\ufeff"))
	col = strings.Trim(col, `"' `)
	for field, variants := range columnMappings {
		for _, variant := range variants {
			if col == variant {
				return field
			}
		}
	}
	return ""
}

// buildColumnIndex creates a field index from CSV headers. The first
// column mapping to a field wins.
func buildColumnIndex(header []string) map[string]int {
	colIndex := make(map[string]int)
	for i, col := range header {
		field := normalizeColumnName(col)
		if field == "" {
			continue
		}
		if _, exists := colIndex[field]; !exists {
			colIndex[field] = i
		}
	}
	return colIndex
}
