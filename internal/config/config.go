// Package config resolves runtime settings from flags, environment-style
// lookups and an optional JSON or YAML file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Defaults applied when no source sets a value.
const (
	DefaultCalendarID          = "primary"
	DefaultStoreDriver         = DriverMemory
	DefaultMemoryStorePath     = "crm-data"
	DefaultSQLiteStorePath     = "crm.db"
	DefaultSyncLookaheadMonths = 1
	DefaultSendUpdates         = "none"
	DefaultMaintenanceWorkers  = 8
	DefaultListenAddr          = "127.0.0.1:8090"
)

// GoogleCredentials represents the structure of Google OAuth credentials JSON file.
type GoogleCredentials struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
	Web struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"web"`
}

// LoadGoogleCredentials loads Google OAuth credentials from a JSON file.
func LoadGoogleCredentials(path string) (clientID, clientSecret string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds GoogleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", "", fmt.Errorf("failed to parse credentials file: %w", err)
	}

	// Try "installed" first (for desktop apps), then "web"
	if creds.Installed.ClientID != "" {
		return creds.Installed.ClientID, creds.Installed.ClientSecret, nil
	}
	if creds.Web.ClientID != "" {
		return creds.Web.ClientID, creds.Web.ClientSecret, nil
	}

	return "", "", fmt.Errorf("no client_id found in credentials file (expected 'installed' or 'web' section)")
}

// Config holds the configuration for the CRM tools.
type Config struct {
	GoogleAPIKey          string `json:"google_api_key,omitempty" yaml:"google_api_key,omitempty"`
	GoogleClientID        string `json:"google_client_id,omitempty" yaml:"google_client_id,omitempty"`
	GoogleClientSecret    string `json:"google_client_secret,omitempty" yaml:"google_client_secret,omitempty"`
	GoogleCredentialsPath string `json:"google_credentials_path,omitempty" yaml:"google_credentials_path,omitempty"`
	CalendarID            string `json:"calendar_id,omitempty" yaml:"calendar_id,omitempty"`

	// TokenPath stores the OAuth token in a file. When empty the token is
	// kept in the settings collection of the document store.
	TokenPath string `json:"token_path,omitempty" yaml:"token_path,omitempty"`

	StoreDriver string `json:"store_driver,omitempty" yaml:"store_driver,omitempty"` // "memory" or "sqlite"
	StorePath   string `json:"store_path,omitempty" yaml:"store_path,omitempty"`     // directory for memory, file for sqlite

	SyncLookaheadMonths int    `json:"sync_lookahead_months,omitempty" yaml:"sync_lookahead_months,omitempty"`
	SendUpdates         string `json:"send_updates,omitempty" yaml:"send_updates,omitempty"`
	MaintenanceWorkers  int    `json:"maintenance_workers,omitempty" yaml:"maintenance_workers,omitempty"`
	ListenAddr          string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	UserID              string `json:"user_id,omitempty" yaml:"user_id,omitempty"`
}

// LookupFunc reads an environment-style key. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// LoadConfigFromFile loads configuration from a JSON or YAML file, chosen by
// extension.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// LoadConfig loads configuration with the following precedence (highest to lowest):
// 1. Command-line flags (non-zero fields of flags)
// 2. Environment variables, read through lookup
// 3. Config file
// 4. Defaults
// A nil lookup reads the process environment.
func LoadConfig(configFile string, lookup LookupFunc, flags Config) (*Config, error) {
	var config Config
	if lookup == nil {
		lookup = os.LookupEnv
	}

	// Step 1: Load from config file if provided
	if configFile != "" {
		fileConfig, err := LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
		config = *fileConfig
	}

	// Step 2: Override with environment variables
	if err := applyEnv(&config, lookup); err != nil {
		return nil, err
	}

	// Step 3: Override with command-line flags (highest priority)
	overlay(&config, flags)

	// Step 4: Apply defaults and validate
	applyDefaults(&config)
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyEnv(config *Config, lookup LookupFunc) error {
	strs := map[string]*string{
		"GOOGLE_API_KEY":          &config.GoogleAPIKey,
		"GOOGLE_CLIENT_ID":        &config.GoogleClientID,
		"GOOGLE_CLIENT_SECRET":    &config.GoogleClientSecret,
		"GOOGLE_CREDENTIALS_PATH": &config.GoogleCredentialsPath,
		"GOOGLE_CALENDAR_ID":      &config.CalendarID,
		"TOKEN_PATH":              &config.TokenPath,
		"STORE_DRIVER":            &config.StoreDriver,
		"STORE_PATH":              &config.StorePath,
		"SEND_UPDATES":            &config.SendUpdates,
		"LISTEN_ADDR":             &config.ListenAddr,
		"USER_ID":                 &config.UserID,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SYNC_LOOKAHEAD_MONTHS": &config.SyncLookaheadMonths,
		"MAINTENANCE_WORKERS":   &config.MaintenanceWorkers,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s value: %w", key, err)
		}
		*dst = n
	}
	return nil
}

// overlay copies every non-zero field of src onto dst.
func overlay(dst *Config, src Config) {
	setString := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	setString(&dst.GoogleAPIKey, src.GoogleAPIKey)
	setString(&dst.GoogleClientID, src.GoogleClientID)
	setString(&dst.GoogleClientSecret, src.GoogleClientSecret)
	setString(&dst.GoogleCredentialsPath, src.GoogleCredentialsPath)
	setString(&dst.CalendarID, src.CalendarID)
	setString(&dst.TokenPath, src.TokenPath)
	setString(&dst.StoreDriver, src.StoreDriver)
	setString(&dst.StorePath, src.StorePath)
	setString(&dst.SendUpdates, src.SendUpdates)
	setString(&dst.ListenAddr, src.ListenAddr)
	setString(&dst.UserID, src.UserID)
	if src.SyncLookaheadMonths != 0 {
		dst.SyncLookaheadMonths = src.SyncLookaheadMonths
	}
	if src.MaintenanceWorkers != 0 {
		dst.MaintenanceWorkers = src.MaintenanceWorkers
	}
}

func applyDefaults(config *Config) {
	if config.CalendarID == "" {
		config.CalendarID = DefaultCalendarID
	}
	if config.StoreDriver == "" {
		config.StoreDriver = DefaultStoreDriver
	}
	if config.StorePath == "" {
		if config.StoreDriver == DriverSQLite {
			config.StorePath = DefaultSQLiteStorePath
		} else {
			config.StorePath = DefaultMemoryStorePath
		}
	}
	if config.SyncLookaheadMonths == 0 {
		config.SyncLookaheadMonths = DefaultSyncLookaheadMonths
	}
	if config.SendUpdates == "" {
		config.SendUpdates = DefaultSendUpdates
	}
	if config.MaintenanceWorkers == 0 {
		config.MaintenanceWorkers = DefaultMaintenanceWorkers
	}
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr
	}
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite:
	default:
		return fmt.Errorf("store_driver must be %q or %q, got %q", DriverMemory, DriverSQLite, c.StoreDriver)
	}
	switch c.SendUpdates {
	case "none", "all", "externalOnly":
	default:
		return fmt.Errorf("send_updates must be 'none', 'all' or 'externalOnly', got %q", c.SendUpdates)
	}
	if c.SyncLookaheadMonths < 1 {
		return fmt.Errorf("sync_lookahead_months must be at least 1, got %d", c.SyncLookaheadMonths)
	}
	if c.MaintenanceWorkers < 1 {
		return fmt.Errorf("maintenance_workers must be at least 1, got %d", c.MaintenanceWorkers)
	}
	return nil
}

// ErrNoCredentials is returned when no OAuth client is configured.
var ErrNoCredentials = errors.New("google OAuth client must be provided via --google-client-id/GOOGLE_CLIENT_ID or --google-credentials-path/GOOGLE_CREDENTIALS_PATH")

// OAuthClient returns the OAuth client id and secret, reading the credentials
// file when they are not set directly.
func (c *Config) OAuthClient() (clientID, clientSecret string, err error) {
	if c.GoogleClientID != "" {
		return c.GoogleClientID, c.GoogleClientSecret, nil
	}
	if c.GoogleCredentialsPath == "" {
		return "", "", ErrNoCredentials
	}
	return LoadGoogleCredentials(c.GoogleCredentialsPath)
}
