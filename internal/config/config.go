// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Checkout CheckoutConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string
	Env  string
}

// StoreConfig selects and configures the tabular store.
type StoreConfig struct {
	Backend        string
	SheetsBaseURL  string
	SpreadsheetID  string
	AccessToken    string
	SQLitePath     string
	Timezone       string
	RequestTimeout time.Duration
}

// CheckoutConfig holds checkout settings.
type CheckoutConfig struct {
	Retries  int
	Currency string
}

// Production reports whether APP_ENV is "production".
func (s ServerConfig) Production() bool {
	return s.Env == "production"
}

// Location loads the configured timezone.
func (s StoreConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSheets:
		if c.Store.SpreadsheetID == "" {
			return fmt.Errorf("SPREADSHEET_ID is required for the %s backend", BackendSheets)
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the %s backend", BackendSQLite)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Checkout.Retries < 1 {
		return fmt.Errorf("CHECKOUT_RETRIES must be at least 1, got %d", c.Checkout.Retries)
	}
	return nil
}

// Load reads configuration from environment variables, after loading a
// .env file from the working directory when one exists. Variables already
// set in the environment win over the file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8081"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Store: StoreConfig{
			Backend:        getEnv("STORE_BACKEND", BackendSQLite),
			SheetsBaseURL:  getEnv("SHEETS_BASE_URL", "https://sheets.googleapis.com"),
			SpreadsheetID:  getEnv("SPREADSHEET_ID", ""),
			AccessToken:    getEnv("SHEETS_ACCESS_TOKEN", ""),
			SQLitePath:     getEnv("SQLITE_PATH", "pos.db"),
			Timezone:       getEnv("STORE_TIMEZONE", "Asia/Ho_Chi_Minh"),
			RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		},
		Checkout: CheckoutConfig{
			Retries:  getEnvInt("CHECKOUT_RETRIES", 3),
			Currency: getEnv("CURRENCY", "VND"),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("45s") or a plain number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if s, err := strconv.Atoi(value); err == nil {
		return time.Duration(s) * time.Second
	}
	return defaultValue
}
