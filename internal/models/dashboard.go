package models

import "time"

// DashboardMetrics contains the headline KPIs for a window
type DashboardMetrics struct {
	Revenue        float64   `json:"revenue"`
	VisitCount     int       `json:"visit_count"`
	UnitPrice      float64   `json:"unit_price"`
	PatientCount   int       `json:"patient_count"`
	NewCount       int       `json:"new_count"`
	ExistingCount  int       `json:"existing_count"`
	OtherCount     int       `json:"other_count"`
	NewRate        float64   `json:"new_rate"`
	UndatedRecords int       `json:"undated_records"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`

	// Monthly values for sparklines
	RevenueTrend []float64 `json:"revenue_trend"`
	VisitTrend   []int     `json:"visit_trend"`
	TrendLabels  []string  `json:"trend_labels"`
}

// ComparisonMode selects the baseline period
type ComparisonMode string

const (
	ComparePrevious ComparisonMode = "previous"
	CompareYear     ComparisonMode = "year"
)

// PeriodComparison holds metrics for two periods. Ratios are
// current/previous*100 and 0 when the baseline is 0.
type PeriodComparison struct {
	Mode     ComparisonMode    `json:"mode"`
	Current  *DashboardMetrics `json:"current"`
	Previous *DashboardMetrics `json:"previous"`
	HasData  bool              `json:"has_data"`

	RevenueRatio   float64 `json:"revenue_ratio_pct"`
	VisitRatio     float64 `json:"visit_ratio_pct"`
	UnitPriceRatio float64 `json:"unit_price_ratio_pct"`
	NewRateChange  float64 `json:"new_rate_change_pp"` // percentage points
}

// Status describes what the dataset currently holds
type Status struct {
	APIConnected bool      `json:"api_connected"`
	CSVLoaded    bool      `json:"csv_loaded"`
	APIRecords   int       `json:"api_records"`
	CSVRecords   int       `json:"csv_records"`
	TotalRecords int       `json:"total_records"`
	MinDate      time.Time `json:"min_date,omitempty"`
	MaxDate      time.Time `json:"max_date,omitempty"`
	LastUpdated  time.Time `json:"last_updated,omitempty"`
}

// FileInfo describes a record file in the data directory
type FileInfo struct {
	Name    string       `json:"name"`
	Path    string       `json:"path"`
	Size    int64        `json:"size"`
	Enabled bool         `json:"enabled"`
	Source  RecordSource `json:"source"`
	Records int          `json:"records"`
	MinDate string       `json:"min_date"`
	MaxDate string       `json:"max_date"`
}
