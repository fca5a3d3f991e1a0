package models

import "time"

// StaffGoal is a user-entered monthly target for one staff member
type StaffGoal struct {
	ID               string    `json:"id"`
	StaffName        string    `json:"staffName"`
	ClinicName       string    `json:"clinicName"`
	Month            string    `json:"month"` // "2006-01"
	RevenueTarget    float64   `json:"revenueTarget"`
	VisitTarget      int       `json:"visitTarget"`
	NewPatientTarget int       `json:"newPatientTarget"`
	NewRateTarget    float64   `json:"newRateTarget"`
	UnitPriceTarget  float64   `json:"unitPriceTarget"`
	RepeatRateTarget float64   `json:"repeatRateTarget"`
	Note             string    `json:"note"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// GoalProgress pairs a goal with the actuals for its staff and month
type GoalProgress struct {
	Goal            StaffGoal `json:"goal"`
	Revenue         float64   `json:"revenue"`
	Visits          int       `json:"visits"`
	NewPatients     int       `json:"newPatients"`
	NewRate         float64   `json:"newRate"`
	UnitPrice       float64   `json:"unitPrice"`
	RepeatRate      float64   `json:"repeatRate"`
	AchievementRate float64   `json:"achievementRate"`
}
