// Package config loads the service configuration from flags and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 50 * 1024 * 1024 // 50MB upload cap
	DefaultMaxRetries  = 3

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the form-fill service.
type Config struct {
	// Server configuration
	Host string
	Port int

	// Document configuration
	TemplatePath string
	StorageDir   string
	DatabasePath string
	CatalogPath  string
	SeedPath     string

	// Collaborator configuration
	ExtractionURL string
	ClassifierURL string
	MaxRetries    int

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum uploaded document size in bytes
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		TemplatePath: "templates/elterngeldantrag.pdf",
		StorageDir:   "data/documents",
		DatabasePath: "data/wizard.db",
		MaxRetries:   DefaultMaxRetries,
		Version:      "1.0.0",
		ServerName:   "elterngeld-wizard",
		LogLevel:     DefaultLogLevel,
		MaxFileSize:  DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration.
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.StorageDir != "" {
		if expandedPath, err := filepath.Abs(cfg.StorageDir); err == nil {
			cfg.StorageDir = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults.
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("ELTERNGELD")
	viper.AutomaticEnv()

	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("template", cfg.TemplatePath)
	viper.SetDefault("storage", cfg.StorageDir)
	viper.SetDefault("db", cfg.DatabasePath)
	viper.SetDefault("catalog", cfg.CatalogPath)
	viper.SetDefault("seed", cfg.SeedPath)
	viper.SetDefault("extraction_url", cfg.ExtractionURL)
	viper.SetDefault("classifier_url", cfg.ClassifierURL)
	viper.SetDefault("max_retries", cfg.MaxRetries)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags.
func defineCommandLineFlags(cfg *Config) {
	pflag.String("host", cfg.Host, "Server host address")
	pflag.Int("port", cfg.Port, "Server port")
	pflag.String("template", cfg.TemplatePath, "Path to the AcroForm PDF template")
	pflag.String("storage", cfg.StorageDir, "Directory for document revisions")
	pflag.String("db", cfg.DatabasePath, "Path to the SQLite database")
	pflag.String("catalog", cfg.CatalogPath, "Optional JSON file replacing the built-in schema catalog")
	pflag.String("seed", cfg.SeedPath, "Optional JSON file of seed mappings inserted at startup")
	pflag.String("extraction_url", cfg.ExtractionURL, "URL of the document extraction service")
	pflag.String("classifier_url", cfg.ClassifierURL, "URL of the semantic field classifier")
	pflag.Int("max_retries", cfg.MaxRetries, "Maximum attempts per collaborator call")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum uploaded document size in bytes")
}

// bindFlagsToViper binds command line flags to viper configuration.
func bindFlagsToViper() {
	for _, name := range []string{
		"host", "port", "template", "storage", "db", "catalog", "seed",
		"extraction_url", "classifier_url", "max_retries", "loglevel", "maxfilesize",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message.
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nElterngeld Wizard - field mapping and incremental form filling\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  ELTERNGELD_HOST            Server host\n")
		fmt.Fprintf(os.Stderr, "  ELTERNGELD_PORT            Server port\n")
		fmt.Fprintf(os.Stderr, "  ELTERNGELD_TEMPLATE        Template PDF path\n")
		fmt.Fprintf(os.Stderr, "  ELTERNGELD_STORAGE         Document storage directory\n")
		fmt.Fprintf(os.Stderr, "  ELTERNGELD_DB              SQLite database path\n")
		fmt.Fprintf(os.Stderr, "  ELTERNGELD_EXTRACTION_URL  Extraction service URL\n")
		fmt.Fprintf(os.Stderr, "  ELTERNGELD_CLASSIFIER_URL  Classifier service URL\n")
		fmt.Fprintf(os.Stderr, "  ELTERNGELD_LOGLEVEL        Log level\n")
	}
}

// populateConfigFromViper fills the config struct with values from viper.
func populateConfigFromViper(cfg *Config) {
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.TemplatePath = viper.GetString("template")
	cfg.StorageDir = viper.GetString("storage")
	cfg.DatabasePath = viper.GetString("db")
	cfg.CatalogPath = viper.GetString("catalog")
	cfg.SeedPath = viper.GetString("seed")
	cfg.ExtractionURL = viper.GetString("extraction_url")
	cfg.ClassifierURL = viper.GetString("classifier_url")
	cfg.MaxRetries = viper.GetInt("max_retries")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if c.TemplatePath == "" {
		return errors.New("template path cannot be empty")
	}

	if c.StorageDir == "" {
		return errors.New("storage directory cannot be empty")
	}
	if _, err := os.Stat(c.StorageDir); os.IsNotExist(err) {
		if err := os.MkdirAll(c.StorageDir, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create storage directory %s: %w", c.StorageDir, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access storage directory %s: %w", c.StorageDir, err)
	}

	if c.DatabasePath == "" {
		return errors.New("database path cannot be empty")
	}

	if c.MaxRetries < 1 {
		return errors.New("max retries must be at least 1")
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Address returns the server address as host:port.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled.
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Host: %s, Port: %d, Template: %s, Storage: %s, DB: %s, LogLevel: %s}",
		c.Host, c.Port, c.TemplatePath, c.StorageDir, c.DatabasePath, c.LogLevel)
}
