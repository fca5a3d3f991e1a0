package goals

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apphttp "clinicdash/internal/http"
	"clinicdash/internal/models"
	"clinicdash/internal/services/dataset"
	goalsvc "clinicdash/internal/services/goals"
)

var (
	goals *goalsvc.Store
	data  *dataset.Store
	now   = time.Now
)

// Initialize sets up the goals package with required dependencies
func Initialize(g *goalsvc.Store, d *dataset.Store) {
	goals = g
	data = d
}

// RegisterRoutes registers all goal routes
func RegisterRoutes(r chi.Router) {
	r.Get("/goals", handleList)
	r.Post("/goals", handleCreate)
	r.Get("/goals/progress", handleProgress)
	r.Get("/goals/export", handleExport)
	r.Put("/goals/{id}", handleUpdate)
	r.Delete("/goals/{id}", handleDelete)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, goalsvc.ErrGoalNotFound):
		return http.StatusNotFound
	case errors.Is(err, goalsvc.ErrInvalidGoal):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func handleList(w http.ResponseWriter, r *http.Request) {
	apphttp.JSON(w, http.StatusOK, goals.List())
}

func handleCreate(w http.ResponseWriter, r *http.Request) {
	var g models.StaffGoal
	if err := apphttp.DecodeJSON(r, &g); err != nil {
		apphttp.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	created, err := goals.Add(g)
	if err != nil {
		apphttp.ErrorResponse(w, err.Error(), statusFor(err))
		return
	}
	apphttp.JSON(w, http.StatusCreated, created)
}

func handleUpdate(w http.ResponseWriter, r *http.Request) {
	var g models.StaffGoal
	if err := apphttp.DecodeJSON(r, &g); err != nil {
		apphttp.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := goals.Update(chi.URLParam(r, "id"), g)
	if err != nil {
		apphttp.ErrorResponse(w, err.Error(), statusFor(err))
		return
	}
	apphttp.JSON(w, http.StatusOK, updated)
}

func handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := goals.Delete(chi.URLParam(r, "id")); err != nil {
		apphttp.ErrorResponse(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleProgress(w http.ResponseWriter, r *http.Request) {
	apphttp.JSON(w, http.StatusOK, goalsvc.ProgressAll(goals.List(), data.Snapshot()))
}

func handleExport(w http.ResponseWriter, r *http.Request) {
	apphttp.Attachment(w, "text/csv; charset=utf-8", goalsvc.ExportFilename(now()))
	if err := goalsvc.ExportCSV(w, goals.List(), data.Snapshot()); err != nil {
		log.Printf("Error writing goals export: %v", err)
	}
}
