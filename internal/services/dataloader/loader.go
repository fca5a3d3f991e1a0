package dataloader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"clinicdash/internal/models"
	"clinicdash/internal/services/importer"
	"clinicdash/internal/services/storage"
)

// ErrNoRecordArray is returned for JSON files without a record list
var ErrNoRecordArray = errors.New("no record array found")

// envelopeKeys are the object keys API exports wrap their record list in
var envelopeKeys = []string{"records", "data", "items", "payments", "result"}

// DataLoader reads practice-management exports from the records directory.
// JSON files are API exports; CSV files go through the import validator and
// only their valid rows are kept.
type DataLoader struct {
	RecordsDirectory string
	SkippedCount     int
	enabledFiles     map[string]bool
	store            *storage.Storage
}

// Loaded holds records by origin
type Loaded struct {
	API []models.VisitRecord
	CSV []models.VisitRecord
}

// New creates a new DataLoader
func New(recordsDirectory string, store *storage.Storage) *DataLoader {
	return &DataLoader{
		RecordsDirectory: recordsDirectory,
		enabledFiles:     make(map[string]bool),
		store:            store,
	}
}

// SetEnabledFiles sets which files should be loaded
func (dl *DataLoader) SetEnabledFiles(files []string) {
	dl.enabledFiles = make(map[string]bool)
	for _, f := range files {
		dl.enabledFiles[f] = true
	}
}

func (dl *DataLoader) enabled(filename string) bool {
	return len(dl.enabledFiles) == 0 || dl.enabledFiles[filename]
}

// files returns the record files in the directory, sorted by name
func (dl *DataLoader) files() ([]string, error) {
	var files []string
	for _, ext := range []string{"*.json", "*.csv"} {
		matches, err := dl.store.Glob(filepath.Join(dl.RecordsDirectory, ext))
		if err != nil {
			return nil, fmt.Errorf("error finding record files: %w", err)
		}
		for _, m := range matches {
			if !storage.IsInternal(m) {
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadData loads every enabled record file. A file that cannot be read is
// skipped with a warning; so is any single record that cannot be decoded.
func (dl *DataLoader) LoadData() (*Loaded, error) {
	files, err := dl.files()
	if err != nil {
		return nil, err
	}

	loaded := &Loaded{}
	dl.SkippedCount = 0

	if len(files) == 0 {
		log.Printf("No record files found in %s - starting with an empty dataset", dl.RecordsDirectory)
		return loaded, nil
	}

	log.Printf("Found %d record files in %s", len(files), dl.RecordsDirectory)

	for _, file := range files {
		filename := filepath.Base(file)
		if !dl.enabled(filename) {
			log.Printf("Skipping disabled file: %s", filename)
			continue
		}

		records, source, err := dl.loadFile(file)
		if err != nil {
			log.Printf("Warning: failed to load %s: %v", filename, err)
			continue
		}

		log.Printf("Loaded %d records from %s", len(records), filename)
		if source == models.SourceCSV {
			loaded.CSV = append(loaded.CSV, records...)
		} else {
			loaded.API = append(loaded.API, records...)
		}
	}

	loaded.API = deduplicate(loaded.API)
	loaded.CSV = deduplicate(loaded.CSV)

	log.Printf("Total records after processing: %d API, %d CSV (%d skipped)",
		len(loaded.API), len(loaded.CSV), dl.SkippedCount)
	return loaded, nil
}

func (dl *DataLoader) loadFile(path string) ([]models.VisitRecord, models.RecordSource, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		records, err := dl.loadCSVFile(path)
		return records, models.SourceCSV, err
	}
	records, err := dl.loadJSONFile(path)
	return records, models.SourceAPI, err
}

// loadJSONFile decodes an API export
func (dl *DataLoader) loadJSONFile(path string) ([]models.VisitRecord, error) {
	data, err := dl.store.ReadFile(path)
	if err != nil {
		return nil, err
	}

	records, skipped, err := DecodeRecords(data)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		log.Printf("Warning: skipped %d undecodable records in %s", skipped, filepath.Base(path))
		dl.SkippedCount += skipped
	}
	return records, nil
}

// DecodeRecords decodes an API payload. Records are decoded one at a time
// so that a malformed record only loses itself; the number lost is
// returned alongside the rest.
func DecodeRecords(data []byte) ([]models.VisitRecord, int, error) {
	raw, err := recordArray(data)
	if err != nil {
		return nil, 0, err
	}

	records := make([]models.VisitRecord, 0, len(raw))
	skipped := 0
	for i, msg := range raw {
		var r models.VisitRecord
		if err := json.Unmarshal(msg, &r); err != nil {
			log.Printf("Warning: skipping record %d: %v", i, err)
			skipped++
			continue
		}
		if r.Source == "" {
			r.Source = models.SourceAPI
		}
		records = append(records, r)
	}
	return records, skipped, nil
}

// recordArray accepts a bare JSON array or an object wrapping one under a
// well-known key.
func recordArray(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\ufeff")))

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err == nil {
		return raw, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	for _, key := range envelopeKeys {
		if msg, ok := envelope[key]; ok {
			if err := json.Unmarshal(msg, &raw); err == nil {
				return raw, nil
			}
		}
	}
	return nil, ErrNoRecordArray
}

// loadCSVFile runs a saved CSV through the import validator
func (dl *DataLoader) loadCSVFile(path string) ([]models.VisitRecord, error) {
	file, err := dl.store.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	result, err := importer.Parse(file)
	if err != nil {
		return nil, err
	}

	s := result.Summary()
	if s.Invalid > 0 {
		log.Printf("Warning: %s has %d rows with errors - skipped", filepath.Base(path), s.Invalid)
		dl.SkippedCount += s.Invalid
	}
	return result.ValidRecords(), nil
}

// deduplicate removes records with the same hash, keeping the first
func deduplicate(records []models.VisitRecord) []models.VisitRecord {
	unique := models.Deduplicate(records)
	if removed := len(records) - len(unique); removed > 0 {
		log.Printf("Removed %d duplicate records", removed)
	}
	return unique
}

// GetFileInfo returns information about the record files
func (dl *DataLoader) GetFileInfo() ([]models.FileInfo, error) {
	files, err := dl.files()
	if err != nil {
		return nil, err
	}

	infos := make([]models.FileInfo, 0, len(files))
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}

		filename := filepath.Base(file)
		fi := models.FileInfo{
			Name:    filename,
			Path:    file,
			Size:    info.Size(),
			Enabled: dl.enabled(filename),
		}

		// A file that fails to load is still listed, without counts
		skipped := dl.SkippedCount
		records, source, err := dl.loadFile(file)
		dl.SkippedCount = skipped
		fi.Source = source
		if err == nil {
			set := models.NewRecordSet(records)
			fi.Records = set.Len()
			if first := set.MinDate(); !first.IsZero() {
				fi.MinDate = first.Format("2006-01-02")
			}
			if last := set.MaxDate(); !last.IsZero() {
				fi.MaxDate = last.Format("2006-01-02")
			}
		}

		infos = append(infos, fi)
	}
	return infos, nil
}
