package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// DefaultSaveChunkSize is the buffer size used when copying ingested content (1 MiB)
const DefaultSaveChunkSize = 1024 * 1024

// Config holds all configuration for nasfs
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // json, text
	LogFile   string `mapstructure:"log_file"`   // optional JSON-lines mirror of every log entry

	// Storage configuration
	Storage StorageConfig `mapstructure:"storage"`

	// File catalog configuration
	Catalog CatalogConfig `mapstructure:"catalog"`

	// Metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Backend string    `mapstructure:"backend"` // nas
	NAS     NASConfig `mapstructure:"nas"`
}

// NASConfig is the configuration snapshot for the NAS backend.
// It is a plain value: the backend constructor is responsible for checking it.
type NASConfig struct {
	// BasePath is the NAS mount point, e.g. /mnt/nas
	BasePath string `mapstructure:"base_path"`

	// AllowSymlinks permits symbolic links when linking or loading files
	AllowSymlinks bool `mapstructure:"allow_symlinks"`

	// ReadOnly forbids writing new files; deletes only drop the association
	ReadOnly bool `mapstructure:"read_only"`

	// AutoCreateDirectories creates missing bucket directories on save.
	// Only meaningful when ReadOnly is false.
	AutoCreateDirectories bool `mapstructure:"auto_create_directories"`

	// SaveChunkSize is the number of bytes copied per read when ingesting
	SaveChunkSize int `mapstructure:"save_chunk_size"`

	// PublicURLBase is the URL prefix under which the NAS tree is served,
	// e.g. http://nas.example.com/files/. Empty disables public URLs.
	PublicURLBase string `mapstructure:"public_url_base"`
}

// DefaultNASConfig returns a NAS configuration with every optional field at its default
func DefaultNASConfig(basePath string) NASConfig {
	return NASConfig{
		BasePath:              basePath,
		AllowSymlinks:         true,
		ReadOnly:              true,
		AutoCreateDirectories: false,
		SaveChunkSize:         DefaultSaveChunkSize,
	}
}

// CatalogConfig defines where file metadata records are kept
type CatalogConfig struct {
	Dir string `mapstructure:"dir"`
}

// MetricsConfig defines metrics configuration
type MetricsConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Textfile string `mapstructure:"textfile"` // Prometheus textfile collector output
}

// Load loads configuration from various sources
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Bind command line flags
	if err := bindFlags(cmd, v); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	// Read from config file if specified
	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Read from environment variables, e.g. NASFS_STORAGE_NAS_BASE_PATH
	v.SetEnvPrefix("NASFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file", "")

	// Storage defaults
	v.SetDefault("storage.backend", "nas")
	// NO default for storage.nas.base_path - must be explicitly configured
	v.SetDefault("storage.nas.base_path", "")
	v.SetDefault("storage.nas.allow_symlinks", true)
	v.SetDefault("storage.nas.read_only", true)
	v.SetDefault("storage.nas.auto_create_directories", false)
	v.SetDefault("storage.nas.save_chunk_size", DefaultSaveChunkSize)
	v.SetDefault("storage.nas.public_url_base", "")

	v.SetDefault("catalog.dir", "./catalog")

	v.SetDefault("metrics.enable", false)
	v.SetDefault("metrics.textfile", "")
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := map[string]string{
		"base-path":    "storage.nas.base_path",
		"log-level":    "log_level",
		"log-format":   "log_format",
		"log-file":     "log_file",
		"catalog-dir":  "catalog.dir",
		"metrics-file": "metrics.textfile",
	}

	for flag, key := range flags {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}

	return nil
}

// validate only normalizes ambient settings; storage checks belong to the backend
func validate(cfg *Config) error {
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported log_format %q (expected json or text)", cfg.LogFormat)
	}

	if cfg.Catalog.Dir == "" {
		return fmt.Errorf("catalog.dir is required")
	}
	if !filepath.IsAbs(cfg.Catalog.Dir) {
		if absDir, err := filepath.Abs(cfg.Catalog.Dir); err == nil {
			cfg.Catalog.Dir = absDir
		}
	}

	// A configured textfile implies metrics are wanted
	if cfg.Metrics.Textfile != "" {
		cfg.Metrics.Enable = true
	}

	return nil
}
