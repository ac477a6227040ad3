// Package config loads the layered application configuration: defaults,
// optional YAML file, then PRIVASCAN_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration. It is an explicit value
// threaded through the orchestrator and adapters; nothing reads viper state
// after Load returns.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Scanners  ScannersConfig  `mapstructure:"scanners" yaml:"scanners"`
	Mobile    MobileConfig    `mapstructure:"mobile_service" yaml:"mobile_service"`
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Timeouts  TimeoutConfig   `mapstructure:"scan_timeouts" yaml:"scan_timeouts"`
}

// LoggerConfig configures the zap logger stack.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`

	// File rotation, handled by lumberjack when LogFile is set.
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// ScannersConfig locates the external scanner binaries.
type ScannersConfig struct {
	SecretScannerA SecretScannerConfig `mapstructure:"secret_scanner_a" yaml:"secret_scanner_a"`
	SecretScannerB SecretScannerConfig `mapstructure:"secret_scanner_b" yaml:"secret_scanner_b"`
}

// SecretScannerConfig points at one external binary, with an optional bundled
// fallback directory searched when the binary is not on PATH.
type SecretScannerConfig struct {
	Binary     string `mapstructure:"binary" yaml:"binary"`
	BundledDir string `mapstructure:"bundled_dir" yaml:"bundled_dir"`
}

// MobileConfig addresses the external mobile analysis service.
type MobileConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
}

// WorkspaceConfig controls where per-scan temp directories are created.
type WorkspaceConfig struct {
	// TempRoot defaults to the platform temp directory when empty.
	TempRoot string `mapstructure:"temp_root" yaml:"temp_root"`
}

// TimeoutConfig carries the per-adapter timeouts. Values are durations so
// they read naturally in YAML ("60s", "2m").
type TimeoutConfig struct {
	GitClone     time.Duration `mapstructure:"git_clone" yaml:"git_clone"`
	ScannerARepo time.Duration `mapstructure:"scanner_a_repo" yaml:"scanner_a_repo"`
	ScannerAFile time.Duration `mapstructure:"scanner_a_file" yaml:"scanner_a_file"`
	ScannerB     time.Duration `mapstructure:"scanner_b" yaml:"scanner_b"`
	MobileUpload time.Duration `mapstructure:"mobile_upload" yaml:"mobile_upload"`
	MobileScan   time.Duration `mapstructure:"mobile_scan" yaml:"mobile_scan"`
	MobileReport time.Duration `mapstructure:"mobile_report" yaml:"mobile_report"`
	HTTPProbe    time.Duration `mapstructure:"http_probe" yaml:"http_probe"`
}

// setDefaults registers every recognized option so a missing config file
// still yields a working configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "privascan")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("scanners.secret_scanner_a.binary", "trufflehog3")
	v.SetDefault("scanners.secret_scanner_b.binary", "gitleaks")
	v.SetDefault("scanners.secret_scanner_b.bundled_dir", "tools")

	v.SetDefault("mobile_service.base_url", "")
	v.SetDefault("mobile_service.api_key", "")

	v.SetDefault("workspace.temp_root", "")

	v.SetDefault("scan_timeouts.git_clone", 120*time.Second)
	v.SetDefault("scan_timeouts.scanner_a_repo", 60*time.Second)
	v.SetDefault("scan_timeouts.scanner_a_file", 120*time.Second)
	v.SetDefault("scan_timeouts.scanner_b", 60*time.Second)
	v.SetDefault("scan_timeouts.mobile_upload", 60*time.Second)
	v.SetDefault("scan_timeouts.mobile_scan", 120*time.Second)
	v.SetDefault("scan_timeouts.mobile_report", 120*time.Second)
	v.SetDefault("scan_timeouts.http_probe", 30*time.Second)
}

// Load reads configuration from an optional file, environment variables
// (PRIVASCAN_ prefix) and defaults, in that precedence order.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("privascan")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PRIVASCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the day.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without touching the
// filesystem or environment. Used by tests and as a library fallback.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Unmarshal of pure defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// expandPaths resolves "~" in the filesystem options.
func (c *Config) expandPaths() error {
	for _, p := range []*string{
		&c.Workspace.TempRoot,
		&c.Scanners.SecretScannerA.Binary,
		&c.Scanners.SecretScannerB.Binary,
		&c.Scanners.SecretScannerB.BundledDir,
		&c.Logger.LogFile,
	} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}
