// Package config loads the application configuration from an optional
// YAML file and GENNARO_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved application configuration.
type Config struct {
	// Paths.
	DataDir      string `mapstructure:"dataDir"`
	WorkflowsDir string `mapstructure:"workflowsDir"`
	FilesDir     string `mapstructure:"filesDir"`
	LogFile      string `mapstructure:"logFile"`

	// Logging.
	LogLevel  string `mapstructure:"logLevel"`
	LogFormat string `mapstructure:"logFormat"`

	// Event streaming server (serve-events command).
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// Engine.
	RunTimeout      time.Duration `mapstructure:"runTimeout"`
	LMStudioBaseURL string        `mapstructure:"lmStudioBaseUrl"`
}

// JobStorePath is the SQLite database holding scheduled jobs.
func (c *Config) JobStorePath() string {
	return filepath.Join(c.DataDir, "jobs.db")
}

// FileStorePath is the SQLite database mapping file ids to paths.
func (c *Config) FileStorePath() string {
	return filepath.Join(c.DataDir, "files.db")
}

// Loader reads configuration with viper.
type Loader struct {
	configFile string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithConfigFile forces a specific configuration file.
func WithConfigFile(path string) LoaderOption {
	return func(l *Loader) { l.configFile = path }
}

// Load resolves the configuration: defaults, then the config file when
// present, then GENNARO_* environment variables.
func Load(opts ...LoaderOption) (*Config, error) {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("could not determine home directory: %w", err)
	}
	baseDir := filepath.Join(home, ".gennaro")

	v := viper.New()
	v.SetEnvPrefix("GENNARO")
	v.AutomaticEnv()

	v.SetDefault("dataDir", filepath.Join(baseDir, "data"))
	v.SetDefault("workflowsDir", filepath.Join(baseDir, "workflows"))
	v.SetDefault("filesDir", filepath.Join(baseDir, "files"))
	v.SetDefault("logLevel", "info")
	v.SetDefault("logFormat", "text")
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8765)
	v.SetDefault("runTimeout", 300*time.Second)

	for key, env := range map[string]string{
		"dataDir":         "DATA_DIR",
		"workflowsDir":    "WORKFLOWS_DIR",
		"filesDir":        "FILES_DIR",
		"logFile":         "LOG_FILE",
		"logLevel":        "LOG_LEVEL",
		"logFormat":       "LOG_FORMAT",
		"host":            "HOST",
		"port":            "PORT",
		"runTimeout":      "RUN_TIMEOUT",
		"lmStudioBaseUrl": "LMSTUDIO_BASE_URL",
	} {
		if err := v.BindEnv(key, "GENNARO_"+env); err != nil {
			return nil, err
		}
	}

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.AddConfigPath(baseDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is fine; an explicit one is not.
		var notFound viper.ConfigFileNotFoundError
		if l.configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
