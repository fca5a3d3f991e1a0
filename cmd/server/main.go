package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"clinicdash/internal/config"
	"clinicdash/internal/handlers/backup"
	"clinicdash/internal/handlers/dashboard"
	goalhandlers "clinicdash/internal/handlers/goals"
	"clinicdash/internal/handlers/imports"
	"clinicdash/internal/handlers/insights"
	"clinicdash/internal/handlers/records"
	"clinicdash/internal/services/dataloader"
	"clinicdash/internal/services/dataset"
	"clinicdash/internal/services/goals"
	"clinicdash/internal/services/importer"
	"clinicdash/internal/services/metrics"
	"clinicdash/internal/services/storage"
	"clinicdash/internal/version"
)

const (
	shutdownTimeout = 10 * time.Second

	// Draft imports nobody has touched for this long are dropped
	importMaxAge        = 24 * time.Hour
	importSweepInterval = 15 * time.Minute
)

var (
	cfg       *config.Config
	store     *storage.Storage
	loader    *dataloader.DataLoader
	data      *dataset.Store
	goalStore *goals.Store
	sessions  *importer.Manager
)

func main() {
	cfg = config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	info := version.Get()
	log.Printf("Starting %s", info)
	if w := info.Warning(); w != "" {
		log.Printf("Warning: %s", w)
	}
	log.Printf("Data directory: %s", cfg.DataDirectory)

	var err error
	store, err = storage.New(cfg.DataDirectory)
	if err != nil {
		log.Fatalf("Failed to open data directory: %v", err)
	}
	if err := unlockStorage(); err != nil {
		log.Fatalf("Failed to unlock storage: %v", err)
	}

	if err := SetupDependencies(cfg); err != nil {
		log.Fatalf("Failed to setup dependencies: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg.ListenAddr, SetupRouter()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}

// unlockStorage unlocks encrypted storage with CLINIC_PASSWORD or a
// terminal prompt. Without either the server starts locked and waits for
// POST /api/unlock.
func unlockStorage() error {
	if !store.IsEncrypted() {
		return nil
	}

	password := cfg.Password
	if password == "" {
		var err error
		password, err = config.ReadPassword("Data directory is encrypted. Password: ")
		if errors.Is(err, config.ErrNoTerminal) {
			log.Println("Warning: storage is encrypted and locked; records load after POST /api/unlock")
			return nil
		}
		if err != nil {
			return err
		}
	}
	return store.Unlock(password)
}

// SetupDependencies wires services and handler packages. store must be
// set before calling.
func SetupDependencies(c *config.Config) error {
	cfg = c
	loader = dataloader.New(cfg.RecordsDirectory, store)
	data = dataset.New()
	goalStore = goals.New(store, cfg.SettingsDirectory)
	sessions = importer.NewManager()

	records.Initialize(loader, data)
	dashboard.Initialize(data, metrics.New(cfg.TrendMonths), cfg.TrendMonths)
	imports.Initialize(sessions, data)
	goalhandlers.Initialize(goalStore, data)
	insights.Initialize(data)
	backup.Initialize(cfg, store, data, goalStore)

	// A locked store loads nothing now; /api/unlock reloads both
	if !store.IsUnlocked() {
		return nil
	}
	if err := records.Reload(); err != nil {
		return err
	}
	return goalStore.Load()
}

// SetupRouter builds the HTTP handler
func SetupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		Debug:          cfg.Debug,
	}).Handler)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/health", http.StatusTemporaryRedirect)
	})

	r.Route("/api", func(r chi.Router) {
		backup.RegisterRoutes(r)
		records.RegisterRoutes(r)
		dashboard.RegisterRoutes(r)
		imports.RegisterRoutes(r)
		goalhandlers.RegisterRoutes(r)
		insights.RegisterRoutes(r)
	})

	return r
}

// serve runs the server and the import janitor until ctx is cancelled,
// then shuts the server down gracefully
func serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return sessions.RunJanitor(ctx, importSweepInterval, importMaxAge)
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
