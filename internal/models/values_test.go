package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		ok       bool
	}{
		{"12000", 12000, true},
		{"12,000", 12000, true},
		{"¥12,000", 12000, true},
		{"12000円", 12000, true},
		{"１２，０００円", 12000, true},
		{"1234.5", 1234.5, true},
		{"-500", -500, true},
		{"▲500", -500, true},
		{"(300)", -300, true},
		{"", 0, false},
		{"abc", 0, false},
		{"円", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseAmount(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseAmount(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if got != tt.expected {
				t.Errorf("ParseAmount(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		input    string
		expected int
		ok       bool
	}{
		{"45", 45, true},
		{"４５", 45, true},
		{"45歳", 45, true},
		{" 150 ", 150, true},
		{"", 0, false},
		{"forty", 0, false},
		{"45.5", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseInt(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, Location)

	for _, input := range []string{"2024-03-05", "2024/03/05", "2024/3/5", "20240305", "2024年3月5日", "２０２４－０３－０５"} {
		t.Run(input, func(t *testing.T) {
			got, ok := ParseDate(input)
			require.True(t, ok)
			assert.True(t, want.Equal(got), "got %v", got)
		})
	}

	t.Run("offset converted to local zone", func(t *testing.T) {
		got, ok := ParseDate("2024-01-31T20:00:00Z")
		require.True(t, ok)
		assert.Equal(t, "2024-02", MonthKey(got))
	})

	t.Run("garbage", func(t *testing.T) {
		_, ok := ParseDate("not a date")
		assert.False(t, ok)
	})
}

func TestNumberUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		json  string
		valid bool
		value float64
	}{
		{"number", `{"n": 1500}`, true, 1500},
		{"numeric string", `{"n": "1,500"}`, true, 1500},
		{"yen string", `{"n": "¥1,500円"}`, true, 1500},
		{"null", `{"n": null}`, false, 0},
		{"missing", `{}`, false, 0},
		{"garbage string", `{"n": "n/a"}`, false, 0},
		{"bool", `{"n": true}`, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v struct {
				N Number `json:"n"`
			}
			require.NoError(t, json.Unmarshal([]byte(tt.json), &v))
			assert.Equal(t, tt.valid, v.N.Valid)
			assert.Equal(t, tt.value, v.N.Value)
		})
	}
}

func TestFlagUnmarshal(t *testing.T) {
	tests := []struct {
		json  string
		valid bool
		value bool
	}{
		{`true`, true, true},
		{`false`, true, false},
		{`1`, true, true},
		{`0`, true, false},
		{`"true"`, true, true},
		{`"初診"`, true, true},
		{`"再診"`, true, false},
		{`null`, false, false},
		{`"maybe"`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.json, func(t *testing.T) {
			var f Flag
			require.NoError(t, json.Unmarshal([]byte(tt.json), &f))
			assert.Equal(t, tt.valid, f.Valid)
			assert.Equal(t, tt.value, f.Value)
		})
	}
}

func TestTextUnmarshal(t *testing.T) {
	tests := []struct {
		json     string
		expected string
	}{
		{`"abc"`, "abc"},
		{`12345`, "12345"},
		{`["ピアス", "物販"]`, "ピアス,物販"},
		{`null`, ""},
		{`{"a": 1}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.json, func(t *testing.T) {
			var v Text
			require.NoError(t, json.Unmarshal([]byte(tt.json), &v))
			assert.Equal(t, tt.expected, v.String())
		})
	}
}

func TestBadFieldDoesNotFailRecord(t *testing.T) {
	payload := `{"visitorName": "山田", "totalWithTax": "unknown", "isFirst": "?", "paymentItems": [{"name": "ボトックス", "priceWithTax": "30,000"}]}`

	var r VisitRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &r))
	assert.Equal(t, "山田", r.VisitorName.String())
	assert.False(t, r.TotalWithTax.Valid)
	assert.Equal(t, 30000.0, r.EffectiveRevenue())

	t.Run("numeric codes in text fields", func(t *testing.T) {
		payload := `{"visitorName": 12, "visitorGender": 1, "clinicName": 3, "visitorInflowSourceName": true,
			"reservationInflowPathLabel": {"id": 4}, "totalWithTax": 50000,
			"paymentItems": [{"category": 7, "name": ["ボトックス", "額"], "mainStaffName": null, "priceWithTax": 50000}]}`

		var r VisitRecord
		require.NoError(t, json.Unmarshal([]byte(payload), &r))
		assert.Equal(t, GenderMale, r.Gender())
		assert.Equal(t, "3", r.ClinicLabel())
		assert.Equal(t, "12", r.PatientKey())
		assert.Equal(t, UnsetLabel, r.ReferralSource())
		assert.Equal(t, "ボトックス,額", r.PaymentItems[0].Name.String())
		assert.Equal(t, UnsetLabel, r.PaymentItems[0].StaffLabel())
		assert.Equal(t, 50000.0, r.EffectiveRevenue())
	})
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ＶＩＯ", "vio"},
		{" VIO ", "vio"},
		{"ﾋﾟｱｽ", "ピアス"},
		{"全身脱毛", "全身脱毛"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
