package backup

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"clinicdash/internal/config"
	"clinicdash/internal/handlers/records"
	apphttp "clinicdash/internal/http"
	"clinicdash/internal/services/dataset"
	"clinicdash/internal/services/goals"
	"clinicdash/internal/services/storage"
	"clinicdash/internal/version"
)

// maxBackupBytes bounds an uploaded backup archive
const maxBackupBytes = 50 << 20

var (
	cfg       *config.Config
	store     *storage.Storage
	data      *dataset.Store
	goalStore *goals.Store
	now       = time.Now
)

// Initialize sets up the backup package with required dependencies
func Initialize(c *config.Config, s *storage.Storage, d *dataset.Store, g *goals.Store) {
	cfg = c
	store = s
	data = d
	goalStore = g
}

// reloadAll rereads records and goals after their files changed
func reloadAll() {
	if err := records.Reload(); err != nil {
		log.Printf("Warning: could not reload records: %v", err)
	}
	if err := goalStore.Load(); err != nil {
		log.Printf("Warning: could not reload goals: %v", err)
	}
}

// RegisterRoutes registers health, backup and data management routes
func RegisterRoutes(r chi.Router) {
	r.Get("/health", HandleHealth)
	r.Get("/backup", HandleBackup)
	r.Post("/restore", HandleRestore)
	r.Delete("/data", HandleDeleteAllData)
	r.Post("/unlock", HandleUnlock)
}

// Health is the body of /health
type Health struct {
	Status    string       `json:"status"`
	Version   version.Info `json:"version"`
	Encrypted bool         `json:"encrypted"`
	Unlocked  bool         `json:"unlocked"`
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	apphttp.JSON(w, http.StatusOK, Health{
		Status:    "ok",
		Version:   version.Get(),
		Encrypted: store.IsEncrypted(),
		Unlocked:  store.IsUnlocked(),
	})
}

// HandleUnlock unlocks encrypted storage with {"password": ...} and loads
// the records it guards
func HandleUnlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		apphttp.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := store.Unlock(req.Password); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrWrongPassword) {
			status = http.StatusUnauthorized
		}
		apphttp.ErrorResponse(w, err.Error(), status)
		return
	}

	reloadAll()
	apphttp.JSON(w, http.StatusOK, data.Status())
}

// HandleBackup streams the data directory as a zip. Files are written
// decrypted so the archive can be restored anywhere.
func HandleBackup(w http.ResponseWriter, r *http.Request) {
	if store.IsEncrypted() && !store.IsUnlocked() {
		apphttp.ErrorResponse(w, storage.ErrLocked.Error(), http.StatusLocked)
		return
	}

	filename := fmt.Sprintf("clinic_backup_%s.zip", now().Format("20060102_150405"))
	apphttp.Attachment(w, "application/zip", filename)

	zw := zip.NewWriter(w)
	defer zw.Close()

	if err := writeManifest(zw); err != nil {
		log.Printf("Error writing backup manifest: %v", err)
		return
	}

	dataDir := cfg.DataDirectory
	err := filepath.WalkDir(dataDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || storage.IsInternal(path) {
			return nil
		}

		relPath, err := filepath.Rel(dataDir, path)
		if err != nil {
			return err
		}

		f, err := zw.Create(filepath.ToSlash(relPath))
		if err != nil {
			return err
		}

		file, err := store.OpenFile(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(f, file)
		return err
	})

	// Headers are already sent, so a failure can only be logged
	if err != nil {
		log.Printf("Error creating backup: %v", err)
	}
}

func writeManifest(zw *zip.Writer) error {
	f, err := zw.Create(version.ManifestName)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(version.NewManifest(now(), data.Status().TotalRecords))
}

// checkManifest refuses archives written by a newer data format. Archives
// without a manifest predate it and are accepted.
func checkManifest(files []*zip.File) error {
	for _, f := range files {
		if f.Name != version.ManifestName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("reading backup manifest: %w", err)
		}
		defer rc.Close()

		var m version.Manifest
		if err := json.NewDecoder(rc).Decode(&m); err != nil {
			return fmt.Errorf("reading backup manifest: %w", err)
		}
		return m.Check()
	}
	return nil
}

// restoreTarget maps an archive entry to its destination, or "" when the
// entry is not restorable
func restoreTarget(name string) string {
	name = filepath.ToSlash(name)
	if name == version.ManifestName {
		return ""
	}
	base := filepath.Base(name)
	if strings.Contains(base, "..") || storage.IsInternal(base) {
		return ""
	}

	ext := strings.ToLower(filepath.Ext(base))
	switch {
	case strings.HasPrefix(name, "settings/") && ext == ".json":
		return filepath.Join(cfg.SettingsDirectory, base)
	case ext == ".json" || ext == ".csv":
		return filepath.Join(cfg.RecordsDirectory, base)
	}
	return ""
}

func HandleRestore(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxBackupBytes); err != nil {
		apphttp.ErrorResponse(w, "File too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apphttp.ErrorResponse(w, "Error reading file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".zip") {
		apphttp.ErrorResponse(w, "Only ZIP backup files are allowed", http.StatusBadRequest)
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		apphttp.ErrorResponse(w, "Error reading file", http.StatusInternalServerError)
		return
	}

	zipReader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		apphttp.ErrorResponse(w, "Invalid ZIP file", http.StatusBadRequest)
		return
	}

	if err := checkManifest(zipReader.File); err != nil {
		apphttp.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	var restored []string
	for _, zipFile := range zipReader.File {
		if zipFile.FileInfo().IsDir() {
			continue
		}
		dest := restoreTarget(zipFile.Name)
		if dest == "" {
			continue
		}

		rc, err := zipFile.Open()
		if err != nil {
			log.Printf("Error opening zip entry %s: %v", zipFile.Name, err)
			continue
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			log.Printf("Error reading zip entry %s: %v", zipFile.Name, err)
			continue
		}

		// Written through storage so restored files are encrypted when enabled
		if err := store.WriteFile(dest, body, 0644); err != nil {
			log.Printf("Error writing file %s: %v", dest, err)
			continue
		}
		restored = append(restored, filepath.Base(dest))
	}

	if len(restored) == 0 {
		apphttp.ErrorResponse(w, "No record files found in backup", http.StatusBadRequest)
		return
	}

	log.Printf("Restore complete: %d files restored", len(restored))
	reloadAll()

	apphttp.JSON(w, http.StatusOK, map[string]any{
		"restored": restored,
		"status":   data.Status(),
	})
}

// HandleDeleteAllData removes every record file and empties the dataset.
// Goals are kept.
func HandleDeleteAllData(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(cfg.RecordsDirectory)
	if err != nil {
		apphttp.ErrorResponse(w, "Error reading records directory", http.StatusInternalServerError)
		return
	}

	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".csv" && ext != ".json" {
			continue
		}

		filePath := filepath.Join(cfg.RecordsDirectory, entry.Name())
		if err := store.Remove(filePath); err != nil {
			log.Printf("Error deleting file %s: %v", filePath, err)
			continue
		}
		deleted++
	}

	data.Reset()

	log.Printf("Deleted %d record files", deleted)
	apphttp.JSON(w, http.StatusOK, map[string]any{
		"deleted": deleted,
		"status":  data.Status(),
	})
}
