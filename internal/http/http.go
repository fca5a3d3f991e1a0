package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"clinicdash/internal/models"
	"clinicdash/internal/services/aggregation"
)

// MaxBodyBytes bounds JSON request bodies
const MaxBodyBytes = 10 << 20

// ErrBadDate is returned for a start or end query value that is not a date
var ErrBadDate = errors.New("invalid date")

// JSON writes v with the given status code
func JSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// ErrorResponse sends an error response as {"error": message}
func ErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	log.Printf("Error: %s (status %d)", message, statusCode)
	JSON(w, statusCode, map[string]string{"error": message})
}

// DecodeJSON reads a JSON request body into v
func DecodeJSON(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// Attachment sets the headers for a file download
func Attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
}

// ParseDateRange builds a window from start and end query values. With
// neither set it returns nil, meaning every record. A missing bound falls
// back to the dataset's first or last date.
func ParseDateRange(startStr, endStr string, minDate, maxDate time.Time) (*aggregation.DateRange, error) {
	if startStr == "" && endStr == "" {
		return nil, nil
	}

	start, end := minDate, maxDate
	if startStr != "" {
		t, ok := models.ParseDate(startStr)
		if !ok {
			return nil, fmt.Errorf("%w: start=%q", ErrBadDate, startStr)
		}
		start = t
	}
	if endStr != "" {
		t, ok := models.ParseDate(endStr)
		if !ok {
			return nil, fmt.Errorf("%w: end=%q", ErrBadDate, endStr)
		}
		end = t
	}

	if end.IsZero() {
		end = start
	}
	if start.IsZero() {
		start = end
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end is before start", ErrBadDate)
	}
	return aggregation.NewDateRange(start, end), nil
}

// WindowFromQuery parses start and end from the request against the
// dataset's date bounds
func WindowFromQuery(r *http.Request, records []models.VisitRecord) (*aggregation.DateRange, error) {
	q := r.URL.Query()
	set := models.NewRecordSet(records)
	return ParseDateRange(q.Get("start"), q.Get("end"), set.MinDate(), set.MaxDate())
}

// IntParam reads a positive integer query value, falling back to def when
// it is missing or not a positive number.
func IntParam(r *http.Request, name string, def int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
