package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"clinicdash/internal/models"
)

var (
	// ErrTooFewLines is returned when the file has no data row under the header
	ErrTooFewLines = errors.New("CSV must contain a header and at least one data row")

	// ErrNotCSV is returned for uploads that are not CSV files
	ErrNotCSV = errors.New("file is not a CSV")

	// ErrUnknownHeader is returned when no header column is recognized
	ErrUnknownHeader = errors.New("no recognized columns in CSV header")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Row is one data row of an import. Fields holds the trimmed raw values by
// canonical field name so that edits can be revalidated.
type Row struct {
	Line   int                `json:"line"`
	Fields map[string]string  `json:"fields"`
	Issues []Issue            `json:"issues"`
	Record models.VisitRecord `json:"record"`
}

// HasErrors reports whether any issue on the row is an error
func (r *Row) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Result is a parsed and validated CSV import
type Result struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Summary counts rows and issues
type Summary struct {
	Rows     int `json:"rows"`
	Valid    int `json:"valid"`
	Invalid  int `json:"invalid"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
}

// Summary counts the rows and issues of the result
func (r *Result) Summary() Summary {
	s := Summary{Rows: len(r.Rows)}
	for i := range r.Rows {
		if r.Rows[i].HasErrors() {
			s.Invalid++
		} else {
			s.Valid++
		}
		for _, issue := range r.Rows[i].Issues {
			if issue.Severity == SeverityError {
				s.Errors++
			} else {
				s.Warnings++
			}
		}
	}
	return s
}

// Issues returns every issue in row order
func (r *Result) Issues() []Issue {
	var out []Issue
	for i := range r.Rows {
		out = append(out, r.Rows[i].Issues...)
	}
	return out
}

// ValidRecords returns the records of rows without error issues
func (r *Result) ValidRecords() []models.VisitRecord {
	out := make([]models.VisitRecord, 0, len(r.Rows))
	for i := range r.Rows {
		if !r.Rows[i].HasErrors() {
			out = append(out, r.Rows[i].Record)
		}
	}
	return out
}

// revalidate recomputes issues, duplicate flags and records for all rows
func (r *Result) revalidate() {
	present := make(map[string]bool, len(r.Columns))
	for _, c := range r.Columns {
		present[c] = true
	}

	seen := make(map[string]int)
	for i := range r.Rows {
		row := &r.Rows[i]
		row.Issues = validateRow(row.Line, row.Fields, present)

		key := duplicateKey(row.Fields)
		if first, ok := seen[key]; ok {
			row.Issues = append(row.Issues, newIssue(row.Line, FieldName, DuplicateData, SeverityError,
				row.Fields[FieldName], fmt.Sprintf("%d行目と重複しています", first)))
		} else if !row.HasErrors() {
			// a rejected row must not shadow a later clean copy
			seen[key] = row.Line
		}

		row.Record = buildRecord(row.Fields)
	}
}

func (r *Result) clone() *Result {
	out := &Result{
		Columns: append([]string(nil), r.Columns...),
		Rows:    make([]Row, len(r.Rows)),
	}
	for i, row := range r.Rows {
		fields := make(map[string]string, len(row.Fields))
		for k, v := range row.Fields {
			fields[k] = v
		}
		out.Rows[i] = Row{
			Line:   row.Line,
			Fields: fields,
			Issues: append([]Issue(nil), row.Issues...),
			Record: row.Record,
		}
	}
	return out
}

// CheckUpload rejects uploads whose name or content type is not CSV
func CheckUpload(filename, contentType string) error {
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return nil
	}
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			switch mediaType {
			case "text/csv", "application/csv", "text/comma-separated-values", "application/vnd.ms-excel":
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s", ErrNotCSV, filename)
}

// decode strips a UTF-8 BOM and converts Shift_JIS input to UTF-8
func decode(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	out, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Shift_JIS: %w", err)
	}
	return out, nil
}

// Parse reads a whole CSV upload, then maps, validates and converts every
// row. Only file-level problems return an error; row problems become
// issues on the row.
func Parse(r io.Reader) (*Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading upload: %w", err)
	}
	data, err := decode(raw)
	if err != nil {
		return nil, err
	}

	if countLines(data) < 2 {
		return nil, ErrTooFewLines
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: error reading header: %v", ErrNotCSV, err)
	}

	colIndex := buildColumnIndex(header)
	if len(colIndex) == 0 {
		return nil, ErrUnknownHeader
	}

	result := &Result{}
	for _, field := range fieldOrder {
		if _, ok := colIndex[field]; ok {
			result.Columns = append(result.Columns, field)
		}
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Warning: skipping unreadable CSV row: %v", err)
			continue
		}
		line, _ := reader.FieldPos(0)

		fields := make(map[string]string, len(colIndex))
		empty := true
		for field, idx := range colIndex {
			if idx < len(record) {
				v := strings.TrimSpace(strings.Trim(strings.TrimSpace(record[idx]), `"`))
				fields[field] = v
				if v != "" {
					empty = false
				}
			}
		}
		if empty {
			continue
		}

		result.Rows = append(result.Rows, Row{Line: line, Fields: fields})
	}

	if len(result.Rows) == 0 {
		return nil, ErrTooFewLines
	}

	result.revalidate()
	return result, nil
}

// countLines counts non-blank lines
func countLines(data []byte) int {
	n := 0
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			n++
		}
	}
	return n
}

// fieldOrder is the display order of canonical fields
var fieldOrder = []string{
	FieldName, FieldPatientID, FieldVisitDate, FieldAccountingDate, FieldClinic, FieldStaff,
	FieldAge, FieldGender, FieldPatientType, FieldCategory, FieldTreatment, FieldTotal,
	FieldReferral, FieldRoute, FieldTags,
}
