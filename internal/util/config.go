package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the typed view of flags, GGC_* environment variables and the
// optional config file.
type Config struct {
	Driver      string        `mapstructure:"driver"`
	Database    string        `mapstructure:"db"`
	BusyTimeout time.Duration `mapstructure:"busy-timeout"`
	NetworkDB   bool          `mapstructure:"network-db"`
	LockRetries int           `mapstructure:"lock-retries"`
	LogDir      string        `mapstructure:"log-dir"`
	MetricsFile string        `mapstructure:"metrics-file"`
	Verbose     bool          `mapstructure:"verbose"`
	Quiet       bool          `mapstructure:"quiet"`
	TraceSQL    bool          `mapstructure:"trace-sql"`

	Export ExportConfig `mapstructure:"export"`
}

// ExportConfig configures the bulk exporter
type ExportConfig struct {
	PageSize int      `mapstructure:"page-size"`
	Field    string   `mapstructure:"field"`
	Releases []string `mapstructure:"releases"`
	S3       S3Config `mapstructure:"s3"`
}

// S3Config configures the object storage export sink
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access-key-id"`
	SecretAccessKey string `mapstructure:"secret-access-key"`
	UsePathStyle    bool   `mapstructure:"path-style"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		Driver:      "sqlite",
		Database:    "ggc.db",
		LockRetries: 1,
		LogDir:      "artifacts/logs",
		Export: ExportConfig{
			PageSize: 10000,
			Field:    "aligned",
		},
	}
}

// LoadConfig decodes the viper state into a Config and validates it.
// A nil viper uses the global instance.
func LoadConfig(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	cfg := DefaultConfig()
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields every command depends on
func (c *Config) Validate() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	switch c.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unknown driver %q (want sqlite or postgres)", ErrInvalidConfig, c.Driver)
	}
	if c.Database == "" {
		return fmt.Errorf("%w: database location is empty", ErrInvalidConfig)
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("%w: busy-timeout must not be negative", ErrInvalidConfig)
	}
	if c.LockRetries < 1 {
		c.LockRetries = 1
	}
	if c.Export.PageSize <= 0 {
		return fmt.Errorf("%w: export page-size must be positive, got %d", ErrInvalidConfig, c.Export.PageSize)
	}
	return nil
}
