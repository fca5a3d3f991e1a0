package imports

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apphttp "clinicdash/internal/http"
	"clinicdash/internal/services/dataset"
	"clinicdash/internal/services/importer"
)

// maxUploadBytes bounds a CSV upload
const maxUploadBytes = 20 << 20

var (
	sessions *importer.Manager
	data     *dataset.Store
)

// Initialize sets up the imports package with required dependencies
func Initialize(m *importer.Manager, d *dataset.Store) {
	sessions = m
	data = d
}

// RegisterRoutes registers all import routes
func RegisterRoutes(r chi.Router) {
	r.Post("/imports", handleCreate)
	r.Get("/imports", handleList)
	r.Get("/imports/{id}", handleGet)
	r.Patch("/imports/{id}/rows/{line}", handleUpdateRow)
	r.Post("/imports/{id}/commit", handleCommit)
	r.Delete("/imports/{id}", handleDiscard)
}

// statusFor maps importer errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, importer.ErrSessionNotFound), errors.Is(err, importer.ErrRowNotFound):
		return http.StatusNotFound
	case errors.Is(err, importer.ErrImportBlocked):
		return http.StatusConflict
	case errors.Is(err, importer.ErrTooFewLines), errors.Is(err, importer.ErrNotCSV),
		errors.Is(err, importer.ErrUnknownHeader), errors.Is(err, importer.ErrUnknownField):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// handleCreate accepts a multipart form with a "file" field or a raw CSV
// body with an optional ?filename=
func handleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var (
		body        io.Reader
		filename    string
		contentType string
	)

	if err := r.ParseMultipartForm(maxUploadBytes); err == nil {
		file, header, err := r.FormFile("file")
		if err != nil {
			apphttp.ErrorResponse(w, "Error reading file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		body, filename, contentType = file, header.Filename, header.Header.Get("Content-Type")
	} else {
		body, filename, contentType = r.Body, r.URL.Query().Get("filename"), r.Header.Get("Content-Type")
	}

	if err := importer.CheckUpload(filename, contentType); err != nil {
		apphttp.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	s, err := sessions.Create(filename, body)
	if err != nil {
		apphttp.ErrorResponse(w, err.Error(), statusFor(err))
		return
	}
	apphttp.JSON(w, http.StatusCreated, s)
}

func handleList(w http.ResponseWriter, r *http.Request) {
	apphttp.JSON(w, http.StatusOK, sessions.List())
}

func handleGet(w http.ResponseWriter, r *http.Request) {
	s, err := sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		apphttp.ErrorResponse(w, err.Error(), statusFor(err))
		return
	}
	apphttp.JSON(w, http.StatusOK, s)
}

// handleUpdateRow takes a JSON object of field name to new value
func handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	line, err := strconv.Atoi(chi.URLParam(r, "line"))
	if err != nil {
		apphttp.ErrorResponse(w, "Invalid row number", http.StatusBadRequest)
		return
	}

	var fields map[string]string
	if err := apphttp.DecodeJSON(r, &fields); err != nil {
		apphttp.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	s, err := sessions.UpdateRow(chi.URLParam(r, "id"), line, fields)
	if err != nil {
		apphttp.ErrorResponse(w, err.Error(), statusFor(err))
		return
	}
	apphttp.JSON(w, http.StatusOK, s)
}

func handleCommit(w http.ResponseWriter, r *http.Request) {
	skipInvalid, _ := strconv.ParseBool(r.URL.Query().Get("skipInvalid"))

	records, err := sessions.Commit(chi.URLParam(r, "id"), skipInvalid)
	if err != nil {
		apphttp.ErrorResponse(w, err.Error(), statusFor(err))
		return
	}

	added := data.AppendCSV(records)
	apphttp.JSON(w, http.StatusOK, map[string]any{
		"imported":   added,
		"duplicates": len(records) - added,
		"status":     data.Status(),
	})
}

func handleDiscard(w http.ResponseWriter, r *http.Request) {
	if err := sessions.Discard(chi.URLParam(r, "id")); err != nil {
		apphttp.ErrorResponse(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
