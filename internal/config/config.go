// =============================================================================
// SPED Toolkit - Configuration Module
// =============================================================================
//
// This module loads the application configuration. Settings come from three
// layers, later layers winning:
//
//   1. Built-in defaults (applyMainConfigDefaults)
//   2. The main config file (config.yaml)
//   3. Environment variables, optionally loaded from a .env file
//
// A missing config file is not an error: the defaults are used.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ginjaninja78/sped-toolkit/internal/spedparser"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultEnvFile is loaded when no --env-file is given. It is optional.
const DefaultEnvFile = ".env"

// Environment variables that override the config file.
const (
	EnvInputDir       = "SPED_INPUT_DIR"
	EnvOutputDir      = "SPED_OUTPUT_DIR"
	EnvLogDir         = "SPED_LOG_DIR"
	EnvLogLevel       = "SPED_LOG_LEVEL"
	EnvEncoding       = "SPED_ENCODING"
	EnvHistoryDB      = "SPED_HISTORY_DB"
	EnvMaxConcurrency = "SPED_MAX_CONCURRENCY"
)

// validLogLevels are the accepted log_level values.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for SPED files by the process command.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir receives filtered files, key lists, reports and summaries.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir is where processed inputs are moved when
	// ArchiveOnSuccess is set.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// LogDir receives one session log per run of the CLI.
	// Default: "./logs"
	LogDir string `yaml:"log_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel is one of debug, info, warn, error.
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// OutputNameFormat names the files written by the process command.
	// Placeholders: {original}, {operation}, {timestamp}, {date}, {uuid}.
	// The extension is added per operation.
	// Default: "{original}_{operation}_{timestamp}"
	OutputNameFormat string `yaml:"output_name_format"`

	// MaxConcurrency bounds the number of jobs run at once.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// Encoding of SPED files (latin-1, cp1252, utf-8).
	// Default: "latin-1"
	Encoding string `yaml:"encoding"`

	// HistoryDB is the SQLite database holding the run history.
	// Default: "./data/history.db"
	HistoryDB string `yaml:"history_db"`

	// ArchiveOnSuccess moves an input to InputArchiveDir once all of its
	// jobs succeeded.
	// Default: false
	ArchiveOnSuccess bool `yaml:"archive_on_success"`

	// UseTimestampSubdirs files archived inputs under YYYY/MM/DD.
	// Default: false
	UseTimestampSubdirs bool `yaml:"use_timestamp_subdirs"`
}

// =============================================================================
// LOADING FUNCTIONS
// =============================================================================

// Load builds the configuration from envFile, configPath and the
// environment.
//
// PARAMETERS:
//   - configPath: The path to config.yaml. A missing file yields defaults.
//   - envFile: A .env file to load into the environment. When empty,
//     DefaultEnvFile is tried and may be absent.
//
// RETURNS:
//   - The validated configuration.
//   - An error if a file cannot be parsed or a value is invalid.
func Load(configPath, envFile string) (*MainConfig, error) {
	if err := LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	config, err := readMainConfig(configPath)
	if err != nil {
		return nil, err
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	applyMainConfigDefaults(config)

	if err := validateMainConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadMainConfig reads and validates the main config file, without
// environment overrides.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	config, err := readMainConfig(configPath)
	if err != nil {
		return nil, err
	}

	applyMainConfigDefaults(config)

	if err := validateMainConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// DefaultMainConfig returns a configuration holding only defaults.
func DefaultMainConfig() *MainConfig {
	config := &MainConfig{}
	applyMainConfigDefaults(config)
	return config
}

func readMainConfig(configPath string) (*MainConfig, error) {
	var config MainConfig
	if configPath == "" {
		return &config, nil
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return &config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// LoadEnvFile loads variables from path into the process environment.
// Variables already set are not overwritten. An empty path loads
// DefaultEnvFile if it exists.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(DefaultEnvFile); err != nil {
			return nil
		}
		path = DefaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from the SPED_* environment variables.
func (c *MainConfig) ApplyEnv() error {
	strs := map[string]*string{
		EnvInputDir:  &c.InputDir,
		EnvOutputDir: &c.OutputDir,
		EnvLogDir:    &c.LogDir,
		EnvLogLevel:  &c.LogLevel,
		EnvEncoding:  &c.Encoding,
		EnvHistoryDB: &c.HistoryDB,
	}
	for name, field := range strs {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*field = v
		}
	}

	if v, ok := os.LookupEnv(EnvMaxConcurrency); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", EnvMaxConcurrency, v)
		}
		c.MaxConcurrency = n
	}

	return nil
}

// applyMainConfigDefaults sets default values for any unset fields.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.LogDir == "" {
		config.LogDir = "./logs"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = "{original}_{operation}_{timestamp}"
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}
	if config.Encoding == "" {
		config.Encoding = spedparser.DefaultEncoding
	}
	if config.HistoryDB == "" {
		config.HistoryDB = "./data/history.db"
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	if config.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1, got %d", config.MaxConcurrency)
	}

	config.LogLevel = strings.ToLower(config.LogLevel)
	if !validLogLevels[config.LogLevel] {
		return fmt.Errorf("unknown log_level %q", config.LogLevel)
	}

	if _, err := spedparser.LookupEncoding(config.Encoding); err != nil {
		return err
	}

	f := config.OutputNameFormat
	unique := strings.Contains(f, "{uuid}") ||
		(strings.Contains(f, "{original}") && strings.Contains(f, "{operation}"))
	if !unique {
		return fmt.Errorf("output_name_format %q must contain {uuid} or both {original} and {operation}", f)
	}

	return nil
}
