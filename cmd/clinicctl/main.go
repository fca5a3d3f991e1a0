// Command clinicctl runs the clinic analytics core from the command line:
// classify treatments, check CSV exports, aggregate record files, export
// goal progress and manage at-rest encryption of the data directory.
package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"clinicdash/internal/config"
	"clinicdash/internal/models"
	"clinicdash/internal/services/dataloader"
	"clinicdash/internal/services/dataset"
	"clinicdash/internal/services/storage"
)

// errIssuesFound makes the process exit non-zero without printing usage
var errIssuesFound = errors.New("issues found")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type globalOptions struct {
	dataDir string
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	root := &cobra.Command{
		Use:          "clinicctl",
		Short:        "Clinic dashboard command line tools",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Data directory (default: CLINIC_DATA_DIR or ./data)")

	root.AddCommand(
		newClassifyCmd(),
		newImportCmd(),
		newAggregateCmd(&opts),
		newGoalsCmd(&opts),
		newEncryptCmd(&opts),
		newDecryptCmd(&opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the environment and applies --data-dir
func (o *globalOptions) loadConfig() *config.Config {
	cfg := config.Load()
	if o.dataDir != "" {
		cfg.SetDataDirectory(o.dataDir)
		cfg.EnsureDirectories()
	}
	return cfg
}

// openStorage opens the data directory, unlocking it with CLINIC_PASSWORD
// or a prompt when it is encrypted
func openStorage(cfg *config.Config) (*storage.Storage, error) {
	store, err := storage.New(cfg.DataDirectory)
	if err != nil {
		return nil, err
	}
	if !store.IsEncrypted() {
		return store, nil
	}

	password, err := password(cfg, "Password: ")
	if err != nil {
		return nil, err
	}
	if err := store.Unlock(password); err != nil {
		return nil, err
	}
	return store, nil
}

func password(cfg *config.Config, prompt string) (string, error) {
	if cfg.Password != "" {
		return cfg.Password, nil
	}
	return config.ReadPassword(prompt)
}

// loadRecords loads the record files the same way the server does at startup
func loadRecords(cfg *config.Config, store *storage.Storage) ([]models.VisitRecord, error) {
	loaded, err := dataloader.New(cfg.RecordsDirectory, store).LoadData()
	if err != nil {
		return nil, err
	}
	data := dataset.New()
	data.ReplaceAPI(loaded.API)
	data.AppendCSV(loaded.CSV)
	return data.Snapshot(), nil
}
