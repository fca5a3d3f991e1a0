package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server settings
	ListenAddr     string   `json:"listen_addr"`
	Debug          bool     `json:"debug"`
	AllowedOrigins []string `json:"allowed_origins"`

	// Directories
	DataDirectory     string `json:"data_directory"`
	RecordsDirectory  string `json:"records_directory"`
	SettingsDirectory string `json:"settings_directory"`

	// Dashboard
	TrendMonths int `json:"trend_months"`

	// Unlocks encrypted storage at startup without a prompt
	Password string `json:"-"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	cfg := &Config{
		ListenAddr:     ":8080",
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		TrendMonths:    6,
	}
	cfg.SetDataDirectory(filepath.Join(wd, "data"))
	return cfg
}

// SetDataDirectory points every directory setting below dir
func (c *Config) SetDataDirectory(dir string) {
	c.DataDirectory = dir
	c.RecordsDirectory = filepath.Join(dir, "records")
	c.SettingsDirectory = filepath.Join(dir, "settings")
}

// Load reads a .env file when present, then applies CLINIC_* environment
// variables over the defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: could not read .env: %v", err)
	}

	cfg := DefaultConfig()
	cfg.applyEnv(os.Getenv)
	cfg.EnsureDirectories()
	return cfg
}

func (c *Config) applyEnv(getenv func(string) string) {
	if addr := getenv("CLINIC_LISTEN_ADDR"); addr != "" {
		c.ListenAddr = addr
	}
	if debug := getenv("CLINIC_DEBUG"); debug == "true" || debug == "1" {
		c.Debug = true
	}
	if dataDir := getenv("CLINIC_DATA_DIR"); dataDir != "" {
		c.SetDataDirectory(dataDir)
	}
	if origins := getenv("CLINIC_ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}
	if months := getenv("CLINIC_TREND_MONTHS"); months != "" {
		n, err := strconv.Atoi(months)
		if err != nil {
			log.Printf("Warning: ignoring CLINIC_TREND_MONTHS=%q: %v", months, err)
		} else {
			c.TrendMonths = n
		}
	}
	c.Password = getenv("CLINIC_PASSWORD")
}

// Validate checks values that would make the server misbehave
func (c *Config) Validate() error {
	if c.TrendMonths <= 0 || c.TrendMonths > 120 {
		return fmt.Errorf("trend months must be between 1 and 120, got %d", c.TrendMonths)
	}
	if c.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	return nil
}

// EnsureDirectories creates the data directories if they do not exist
func (c *Config) EnsureDirectories() {
	dirs := []string{
		c.DataDirectory,
		c.RecordsDirectory,
		c.SettingsDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("Warning: could not create directory %s: %v", dir, err)
		}
	}
}
