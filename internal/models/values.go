package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Location is the clinic group's local time zone. Date-only values are
// interpreted here and month buckets are cut here.
var Location = time.FixedZone("JST", 9*60*60)

// UnsetLabel is the display label for a missing clinic, staff member or
// referral source.
const UnsetLabel = "未設定"

// Number is a tolerant JSON number. Practice-management API versions and
// spreadsheet exports disagree on whether amounts are numbers or strings
// ("12,000", "¥12000", "１２０００円"), so decoding never fails: anything
// that is not a usable number decodes as absent.
type Number struct {
	Value float64
	Valid bool
}

// NewNumber returns a present Number.
func NewNumber(v float64) Number {
	return Number{Value: v, Valid: true}
}

// Or returns the value, or def when the number is absent.
func (n Number) Or(def float64) float64 {
	if !n.Valid {
		return def
	}
	return n.Value
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
	}

	if v, ok := ParseAmount(s); ok {
		*n = Number{Value: v, Valid: true}
	}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Flag is a tolerant JSON boolean. Besides true/false it accepts 1/0 and
// the strings exported by CSV tooling.
type Flag struct {
	Value bool
	Valid bool
}

// NewFlag returns a present Flag.
func NewFlag(v bool) Flag {
	return Flag{Value: v, Valid: true}
}

var (
	trueWords  = []string{"true", "1", "yes", "y", "u", "初診", "新規"}
	falseWords = []string{"false", "0", "no", "n", "c", "再診", "既存"}
)

// ParseFlag interprets a loose boolean string.
func ParseFlag(s string) Flag {
	s = Normalize(s)
	for _, w := range trueWords {
		if s == w {
			return NewFlag(true)
		}
	}
	for _, w := range falseWords {
		if s == w {
			return NewFlag(false)
		}
	}
	return Flag{}
}

func (f *Flag) UnmarshalJSON(data []byte) error {
	*f = Flag{}
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
	}
	*f = ParseFlag(s)
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Text is a tolerant JSON string. Numbers keep their literal form and
// arrays of strings are joined with commas (some API versions send
// paymentTags as a list).
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	*t = ""
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			*t = Text(s)
		}
	case '[':
		var parts []string
		if err := json.Unmarshal(raw, &parts); err == nil {
			*t = Text(strings.Join(parts, ","))
		}
	case '{', 't', 'f':
		// objects and booleans carry no usable text
	default:
		*t = Text(raw)
	}
	return nil
}

// String returns the trimmed text.
func (t Text) String() string {
	return strings.TrimSpace(string(t))
}

// Normalize applies NFKC (full-width ASCII to half-width, half-width
// katakana to composed full-width), trims and lowercases. Every keyword
// comparison goes through it so that "ＶＩＯ" matches "vio" and "ﾋﾟｱｽ"
// matches "ピアス".
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}

// ParseAmount parses a money amount after stripping every character that is
// not a digit or decimal point. A leading minus, ▲ or surrounding
// parentheses make the amount negative.
func ParseAmount(s string) (float64, bool) {
	s = width.Fold.String(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	negative := strings.HasPrefix(s, "-") || strings.HasPrefix(s, "−") ||
		strings.HasPrefix(s, "▲") ||
		(strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"))

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" || cleaned == "." {
		return 0, false
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	if negative {
		d = d.Neg()
	}
	return d.InexactFloat64(), true
}

// ParseInt parses a whole number such as an age, accepting full-width
// digits and a trailing unit ("45歳").
func ParseInt(s string) (int, bool) {
	s = width.Fold.String(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "歳")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
	"2006-1-2",
	"2006.01.02",
	"20060102",
	"2006年1月2日",
}

// ParseDate tries the date layouts seen across API versions and CSV exports.
// Values without an offset are read in Location. The zero time and false
// are returned when nothing matches.
func ParseDate(s string) (time.Time, bool) {
	s = width.Fold.String(strings.TrimSpace(s))
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, Location); err == nil {
			return t.In(Location), true
		}
	}
	return time.Time{}, false
}

// MonthKey formats t as "2006-01" in Location.
func MonthKey(t time.Time) string {
	return t.In(Location).Format("2006-01")
}

// MonthStart returns the first instant of t's month in Location.
func MonthStart(t time.Time) time.Time {
	t = t.In(Location)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, Location)
}
