package dashboard

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apphttp "clinicdash/internal/http"
	"clinicdash/internal/models"
	"clinicdash/internal/services/aggregation"
	"clinicdash/internal/services/classifier"
	"clinicdash/internal/services/dataset"
	"clinicdash/internal/services/export"
	"clinicdash/internal/services/metrics"
)

const (
	defaultRankingLimit = 10
	maxTrendMonths      = 120
)

var (
	data        *dataset.Store
	calculator  *metrics.Service
	trendMonths int
	now         = time.Now
)

// Initialize sets up the dashboard package with required dependencies
func Initialize(d *dataset.Store, m *metrics.Service, months int) {
	data = d
	calculator = m
	trendMonths = months
}

// RegisterRoutes registers all dashboard routes
func RegisterRoutes(r chi.Router) {
	r.Get("/dashboard/kpis", handleKPIs)
	r.Get("/dashboard/aggregate", handleAggregate)
	r.Get("/dashboard/trend", handleTrend)
	r.Get("/dashboard/ranking", handleRanking)
	r.Get("/dashboard/export.xlsx", handleExport)
	r.Get("/classify", handleClassify)
	r.Get("/categories", handleCategories)
}

// KPIResponse is the body of /dashboard/kpis
type KPIResponse struct {
	Metrics    *models.DashboardMetrics `json:"metrics"`
	Comparison *models.PeriodComparison `json:"comparison,omitempty"`
	Window     *aggregation.DateRange   `json:"window,omitempty"`
}

func handleKPIs(w http.ResponseWriter, r *http.Request) {
	records := data.Snapshot()
	window, err := apphttp.WindowFromQuery(r, records)
	if err != nil {
		apphttp.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := KPIResponse{
		Metrics: calculator.CalculateMetrics(records, window, now()),
		Window:  window,
	}

	if comparison := r.URL.Query().Get("comparison"); comparison != "" {
		mode, err := metrics.ParseComparison(comparison)
		if err != nil {
			apphttp.ErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		if window == nil {
			apphttp.ErrorResponse(w, "comparison requires start or end", http.StatusBadRequest)
			return
		}
		resp.Comparison, err = calculator.CalculateComparison(records, window, mode)
		if err != nil {
			apphttp.ErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	apphttp.JSON(w, http.StatusOK, resp)
}

// AggregateResponse is the body of /dashboard/aggregate and /ranking
type AggregateResponse struct {
	Dimension      aggregation.Dimension      `json:"dimension"`
	Window         *aggregation.DateRange     `json:"window,omitempty"`
	Buckets        []aggregation.Bucket       `json:"buckets"`
	Reconciliation aggregation.Reconciliation `json:"reconciliation"`
}

func aggregate(r *http.Request, param string, def aggregation.Dimension) (*AggregateResponse, error) {
	name := r.URL.Query().Get(param)
	if name == "" {
		name = string(def)
	}
	dim, err := aggregation.ParseDimension(name)
	if err != nil {
		return nil, err
	}

	records := data.Snapshot()
	window, err := apphttp.WindowFromQuery(r, records)
	if err != nil {
		return nil, err
	}

	rec := aggregation.Reconcile(records, dim, window)
	if !rec.Balanced() {
		log.Printf("Warning: %s buckets differ from record revenue by %.0f", dim, rec.Difference)
	}

	return &AggregateResponse{
		Dimension:      dim,
		Window:         window,
		Buckets:        aggregation.Cumulative(aggregation.Aggregate(records, dim, window)),
		Reconciliation: rec,
	}, nil
}

func aggregateError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, aggregation.ErrUnknownDimension) || errors.Is(err, apphttp.ErrBadDate) {
		status = http.StatusBadRequest
	}
	apphttp.ErrorResponse(w, err.Error(), status)
}

func handleAggregate(w http.ResponseWriter, r *http.Request) {
	resp, err := aggregate(r, "groupBy", aggregation.Month)
	if err != nil {
		aggregateError(w, err)
		return
	}
	apphttp.JSON(w, http.StatusOK, resp)
}

func handleRanking(w http.ResponseWriter, r *http.Request) {
	resp, err := aggregate(r, "by", aggregation.Staff)
	if err != nil {
		aggregateError(w, err)
		return
	}
	resp.Buckets = aggregation.Cumulative(aggregation.TopN(resp.Buckets, apphttp.IntParam(r, "limit", defaultRankingLimit)))
	apphttp.JSON(w, http.StatusOK, resp)
}

func handleTrend(w http.ResponseWriter, r *http.Request) {
	months := apphttp.IntParam(r, "months", trendMonths)
	if months > maxTrendMonths {
		months = maxTrendMonths
	}

	buckets := aggregation.MonthlySeries(data.Snapshot(), months, now())
	apphttp.JSON(w, http.StatusOK, map[string]any{
		"months":  months,
		"buckets": aggregation.Cumulative(buckets),
	})
}

func handleExport(w http.ResponseWriter, r *http.Request) {
	resp, err := aggregate(r, "groupBy", aggregation.Month)
	if err != nil {
		aggregateError(w, err)
		return
	}

	title := resp.Dimension.Label() + "別集計"
	if resp.Window != nil {
		title += fmt.Sprintf(" (%s - %s)", resp.Window.Start.Format("2006/01/02"), resp.Window.End.Format("2006/01/02"))
	}

	filename := fmt.Sprintf("aggregate_%s_%s.xlsx", resp.Dimension, now().Format("20060102_150405"))
	apphttp.Attachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", filename)
	if err := export.WriteBucketsXLSX(w, title, resp.Buckets); err != nil {
		log.Printf("Error writing xlsx export: %v", err)
	}
}

func handleClassify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	apphttp.JSON(w, http.StatusOK, classifier.Classify(q.Get("category"), q.Get("name")))
}

func handleCategories(w http.ResponseWriter, r *http.Request) {
	apphttp.JSON(w, http.StatusOK, classifier.Categories())
}
