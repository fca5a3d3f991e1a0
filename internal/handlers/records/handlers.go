package records

import (
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	apphttp "clinicdash/internal/http"
	"clinicdash/internal/models"
	"clinicdash/internal/services/dataloader"
	"clinicdash/internal/services/dataset"
)

var (
	loader *dataloader.DataLoader
	data   *dataset.Store
)

// Initialize sets up the records package with required dependencies
func Initialize(l *dataloader.DataLoader, d *dataset.Store) {
	loader = l
	data = d
}

// RegisterRoutes registers all record routes
func RegisterRoutes(r chi.Router) {
	r.Get("/records", handleList)
	r.Post("/records", handleReplace)
	r.Get("/records/status", handleStatus)
	r.Get("/records/files", handleFiles)
	r.Post("/records/files/toggle", handleFileToggle)
	r.Post("/records/reload", handleReload)
	r.Delete("/records/csv", handleClearCSV)
}

// ListResponse is one page of records with totals for the whole filter
type ListResponse struct {
	Records    []models.VisitRecord `json:"records"`
	Page       int                  `json:"page"`
	PerPage    int                  `json:"perPage"`
	TotalPages int                  `json:"totalPages"`
	Total      int                  `json:"total"`
	Revenue    float64              `json:"revenue"`
	Clinics    []string             `json:"clinics"`
}

func handleList(w http.ResponseWriter, r *http.Request) {
	all := models.NewRecordSet(data.Snapshot())

	window, err := apphttp.WindowFromQuery(r, all.Records)
	if err != nil {
		apphttp.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	filtered := all
	if window != nil {
		filtered = filtered.FilterByDateRange(window.Start, window.End)
	}
	if clinic := r.URL.Query().Get("clinic"); clinic != "" {
		filtered = filtered.FilterByClinic(clinic)
	}
	if search := r.URL.Query().Get("search"); search != "" {
		filtered = filtered.FilterBySearch(search)
	}
	filtered = filtered.SortByDateDesc()

	page := apphttp.IntParam(r, "page", 1)
	perPage := models.PageSize(apphttp.IntParam(r, "perPage", models.DefaultPerPage))
	totalPages := filtered.TotalPages(perPage)
	if page > totalPages && totalPages > 0 {
		page = totalPages
	}

	records := filtered.Paginate(page, perPage).Records
	if records == nil {
		records = []models.VisitRecord{}
	}

	apphttp.JSON(w, http.StatusOK, ListResponse{
		Records:    records,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		Total:      filtered.Len(),
		Revenue:    filtered.SumRevenue(),
		Clinics:    all.Clinics(),
	})
}

// handleReplace takes a practice-management API payload and makes it the
// current API dataset
func handleReplace(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, apphttp.MaxBodyBytes))
	if err != nil {
		apphttp.ErrorResponse(w, "Error reading body", http.StatusBadRequest)
		return
	}

	records, skipped, err := dataloader.DecodeRecords(body)
	if err != nil {
		apphttp.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	data.ReplaceAPI(records)
	apphttp.JSON(w, http.StatusOK, map[string]any{
		"loaded":  len(records),
		"skipped": skipped,
		"status":  data.Status(),
	})
}

func handleStatus(w http.ResponseWriter, r *http.Request) {
	apphttp.JSON(w, http.StatusOK, data.Status())
}

func handleFiles(w http.ResponseWriter, r *http.Request) {
	files, err := loader.GetFileInfo()
	if err != nil {
		apphttp.ErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	apphttp.JSON(w, http.StatusOK, files)
}

// FileToggle is the body of /records/files/toggle
type FileToggle struct {
	File    string `json:"file"`
	Enabled bool   `json:"enabled"`
}

func handleFileToggle(w http.ResponseWriter, r *http.Request) {
	var req FileToggle
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		apphttp.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	files, err := loader.GetFileInfo()
	if err != nil {
		apphttp.ErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	found := false
	var enabledFiles []string
	for _, f := range files {
		if f.Name == req.File {
			found = true
			if req.Enabled {
				enabledFiles = append(enabledFiles, f.Name)
			}
		} else if f.Enabled {
			enabledFiles = append(enabledFiles, f.Name)
		}
	}
	if !found {
		apphttp.ErrorResponse(w, "File not found", http.StatusNotFound)
		return
	}

	loader.SetEnabledFiles(enabledFiles)
	if err := Reload(); err != nil {
		apphttp.ErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	files, _ = loader.GetFileInfo()
	apphttp.JSON(w, http.StatusOK, files)
}

func handleReload(w http.ResponseWriter, r *http.Request) {
	if err := Reload(); err != nil {
		apphttp.ErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	apphttp.JSON(w, http.StatusOK, data.Status())
}

// Reload reads the records directory again and replaces the dataset with
// what it holds
func Reload() error {
	loaded, err := loader.LoadData()
	if err != nil {
		return err
	}
	data.ReplaceAPI(loaded.API)
	data.ClearCSV()
	data.AppendCSV(loaded.CSV)
	log.Printf("Reloaded records: %d API, %d CSV", len(loaded.API), len(loaded.CSV))
	return nil
}

func handleClearCSV(w http.ResponseWriter, r *http.Request) {
	data.ClearCSV()
	apphttp.JSON(w, http.StatusOK, data.Status())
}
