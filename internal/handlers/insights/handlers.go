package insights

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apphttp "clinicdash/internal/http"
	"clinicdash/internal/models"
	"clinicdash/internal/services/aggregation"
	"clinicdash/internal/services/dataset"
	"clinicdash/internal/services/insights"
)

var (
	data *dataset.Store
	now  = time.Now
)

// Initialize sets up the insights package with required dependencies
func Initialize(d *dataset.Store) {
	data = d
}

// RegisterRoutes registers all insights routes
func RegisterRoutes(r chi.Router) {
	r.Get("/insights/trends", handleTrends)
	r.Get("/insights/repeat", handleRepeat)
	r.Get("/insights/pace", handlePace)
}

// handleTrends compares categories against the preceding period. Without
// start and end the current month is used.
func handleTrends(w http.ResponseWriter, r *http.Request) {
	records := data.Snapshot()

	window, err := apphttp.WindowFromQuery(r, records)
	if err != nil {
		apphttp.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if window == nil {
		window = aggregation.MonthRange(now())
	}

	apphttp.JSON(w, http.StatusOK, map[string]any{
		"window":   window,
		"previous": window.Previous(),
		"trends":   insights.CategoryTrends(records, window),
	})
}

func handleRepeat(w http.ResponseWriter, r *http.Request) {
	records := data.Snapshot()

	window, err := apphttp.WindowFromQuery(r, records)
	if err != nil {
		apphttp.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	apphttp.JSON(w, http.StatusOK, insights.Repeat(records, window))
}

// handlePace projects the month of ?asOf=YYYY-MM-DD, defaulting to today
func handlePace(w http.ResponseWriter, r *http.Request) {
	asOf := now()
	if s := r.URL.Query().Get("asOf"); s != "" {
		t, ok := models.ParseDate(s)
		if !ok {
			apphttp.ErrorResponse(w, "Invalid asOf date", http.StatusBadRequest)
			return
		}
		asOf = t
	}
	apphttp.JSON(w, http.StatusOK, insights.MonthPace(data.Snapshot(), asOf))
}
