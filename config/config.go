// Package config loads and validates the application configuration.
// Configuration is read once at startup from config/config.yaml (overridable
// with INGEST_* environment variables) and threaded into the scheduler,
// pipeline and gateway as an immutable value.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration for the ingestion daemon.
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Folders   FolderConfig    `mapstructure:"folders"`
	FileTypes FileTypeConfig  `mapstructure:"file_types"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// SchedulerConfig controls the ingestion cycle timing and per-cycle
// concurrency.
type SchedulerConfig struct {
	// IntervalMinutes is the pause between ingestion cycles. Must be positive.
	IntervalMinutes int `mapstructure:"interval_minutes"`
	// Workers bounds the number of files processed concurrently inside one
	// cycle.
	Workers int `mapstructure:"workers"`
}

// FolderConfig names the four directory trees the pipeline operates on.
type FolderConfig struct {
	Incoming  string `mapstructure:"incoming"`
	Raw       string `mapstructure:"raw"`
	Validated string `mapstructure:"validated"`
	Failed    string `mapstructure:"failed"`
}

// All returns every configured root, for startup bootstrap.
func (f FolderConfig) All() []string {
	return []string{f.Incoming, f.Raw, f.Validated, f.Failed}
}

// FileTypeConfig maps file extensions onto the three supported file types.
// Extensions are matched case-insensitively and include the leading dot.
type FileTypeConfig struct {
	CSVExtensions   []string `mapstructure:"csv_extensions"`
	ImageExtensions []string `mapstructure:"image_extensions"`
	VideoExtensions []string `mapstructure:"video_extensions"`
}

// DatabaseConfig selects and tunes the metadata store backend.
type DatabaseConfig struct {
	// Driver selects the backend: "sqlite" or "postgres".
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// ServerConfig configures the read-only ops API listener.
type ServerConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	Port         int  `mapstructure:"port"`
	ReadTimeout  int  `mapstructure:"read_timeout"`
	WriteTimeout int  `mapstructure:"write_timeout"`
}

// LoggerConfig configures the logrus-backed logger.
type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// Load reads the configuration from config/config.yaml and the environment.
// A missing file is not an error; defaults plus INGEST_* variables apply.
// Validation failures are fatal to the caller: the daemon must not start a
// single cycle on a broken configuration.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scheduler.interval_minutes", 60)
	v.SetDefault("scheduler.workers", 4)

	v.SetDefault("folders.incoming", "data/incoming")
	v.SetDefault("folders.raw", "data/raw")
	v.SetDefault("folders.validated", "data/validated")
	v.SetDefault("folders.failed", "data/failed")

	v.SetDefault("file_types.csv_extensions", []string{".csv"})
	v.SetDefault("file_types.image_extensions",
		[]string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tiff", ".webp"})
	v.SetDefault("file_types.video_extensions",
		[]string{".mp4", ".avi", ".mov", ".mkv", ".flv", ".wmv", ".webm"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/ingestd.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 3600)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
	v.SetDefault("logger.output", "both")
	v.SetDefault("logger.file_path", "logs/ingestd.log")
}

// Validate checks invariants that would otherwise surface mid-cycle.
func (c *Config) Validate() error {
	if c.Scheduler.IntervalMinutes <= 0 {
		return fmt.Errorf("scheduler.interval_minutes must be positive, got %d", c.Scheduler.IntervalMinutes)
	}
	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("scheduler.workers must be positive, got %d", c.Scheduler.Workers)
	}
	for _, folder := range c.Folders.All() {
		if strings.TrimSpace(folder) == "" {
			return fmt.Errorf("all folder paths must be set")
		}
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn must be set")
	}
	if len(c.FileTypes.CSVExtensions)+len(c.FileTypes.ImageExtensions)+len(c.FileTypes.VideoExtensions) == 0 {
		return fmt.Errorf("at least one file type extension list must be configured")
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	return nil
}
