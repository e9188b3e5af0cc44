package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quantmind-br/snapwiz/internal/paths"
	"github.com/quantmind-br/snapwiz/internal/pkgerr"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Paths    PathsConfig         `mapstructure:"paths"`
	Logging  LoggingConfig       `mapstructure:"logging"`
	Install  InstallConfig       `mapstructure:"install"`
	Managers map[string][]string `mapstructure:"managers"`
	Commands map[string]string   `mapstructure:"commands"`
	Queue    QueueConfig         `mapstructure:"queue"`
	Retry    RetryConfig         `mapstructure:"retry"`
	History  HistoryConfig       `mapstructure:"history"`
}

// PathsConfig contains path-related configuration
type PathsConfig struct {
	DataDir string `mapstructure:"data_dir"`
	DBFile  string `mapstructure:"db_file"`
	LogFile string `mapstructure:"log_file"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Color string `mapstructure:"color"`
}

// InstallConfig controls how a single package is installed
type InstallConfig struct {
	TimeoutSeconds         int      `mapstructure:"timeout_seconds"`
	MetadataTimeoutSeconds int      `mapstructure:"metadata_timeout_seconds"`
	ElevationHelper        string   `mapstructure:"elevation_helper"`
	SupportedExtensions    []string `mapstructure:"supported_extensions"`
	OutputTailBytes        int      `mapstructure:"output_tail_bytes"`
	MinPackageSize         int64    `mapstructure:"min_package_size"`
	ChecksumAlgorithm      string   `mapstructure:"checksum_algorithm"`
	MinFreeSpaceMB         uint64   `mapstructure:"min_free_space_mb"`
	DiskCheckPath          string   `mapstructure:"disk_check_path"`
	FlatpakSystemFallback  bool     `mapstructure:"flatpak_system_fallback"`
	RefreshDesktopDatabase bool     `mapstructure:"refresh_desktop_database"`
}

// QueueConfig contains batch queue limits
type QueueConfig struct {
	MaxSize         int `mapstructure:"max_size"`
	RecommendedSize int `mapstructure:"recommended_size"`
}

// RetryConfig holds the retry presets
type RetryConfig struct {
	Install RetryPolicyConfig `mapstructure:"install"`
	Network RetryPolicyConfig `mapstructure:"network"`
}

// RetryPolicyConfig is the configurable form of a retry policy
type RetryPolicyConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialDelay   time.Duration `mapstructure:"initial_delay"`
	BackoffFactor  float64       `mapstructure:"backoff_factor"`
	MaxDelay       time.Duration `mapstructure:"max_delay"`
	RetryableKinds []string      `mapstructure:"retryable_kinds"`
}

// HistoryConfig contains history store settings
type HistoryConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
}

// Load loads configuration from file and environment
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "snapwiz"))
	}
	v.AddConfigPath(".")

	setDefaults(v)

	// Environment variable overrides
	v.SetEnvPrefix("SNAPWIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Paths.DataDir = expandPath(cfg.Paths.DataDir)
	cfg.Paths.DBFile = expandPath(cfg.Paths.DBFile)
	cfg.Paths.LogFile = expandPath(cfg.Paths.LogFile)
	cfg.Install.DiskCheckPath = expandPath(cfg.Install.DiskCheckPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the built-in configuration without reading files or environment
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("invalid built-in defaults: %v", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	dataDir := paths.NewResolver().DataDir()

	v.SetDefault("paths.data_dir", dataDir)
	v.SetDefault("paths.db_file", filepath.Join(dataDir, "history.db"))
	v.SetDefault("paths.log_file", filepath.Join(dataDir, "snapwiz.log"))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.color", "auto")

	v.SetDefault("install.timeout_seconds", 300)
	v.SetDefault("install.metadata_timeout_seconds", 10)
	v.SetDefault("install.elevation_helper", "pkexec")
	v.SetDefault("install.supported_extensions", []string{".deb", ".rpm", ".snap", ".flatpak"})
	v.SetDefault("install.output_tail_bytes", 2048)
	v.SetDefault("install.min_package_size", 1024)
	v.SetDefault("install.checksum_algorithm", "sha256")
	v.SetDefault("install.min_free_space_mb", 100)
	v.SetDefault("install.disk_check_path", "/")
	v.SetDefault("install.flatpak_system_fallback", true)
	v.SetDefault("install.refresh_desktop_database", true)

	v.SetDefault("managers.deb", []string{"apt", "apt-get", "dpkg"})
	v.SetDefault("managers.rpm", []string{"dnf", "yum", "zypper", "rpm"})
	v.SetDefault("managers.snap", []string{"snap"})
	v.SetDefault("managers.flatpak", []string{"flatpak"})

	v.SetDefault("commands.apt", "install -y {package}")
	v.SetDefault("commands.apt-get", "install -y {package}")
	v.SetDefault("commands.dpkg", "-i {package}")
	v.SetDefault("commands.dnf", "install -y {package}")
	v.SetDefault("commands.yum", "install -y {package}")
	v.SetDefault("commands.zypper", "--non-interactive install {package}")
	v.SetDefault("commands.rpm", "-ivh {package}")
	v.SetDefault("commands.snap", "install --dangerous {package}")
	v.SetDefault("commands.flatpak", "install -y {scope} --bundle {package}")

	v.SetDefault("queue.max_size", 50)
	v.SetDefault("queue.recommended_size", 20)

	v.SetDefault("retry.install.max_attempts", 2)
	v.SetDefault("retry.install.initial_delay", "3s")
	v.SetDefault("retry.install.backoff_factor", 1.5)
	v.SetDefault("retry.install.max_delay", "10s")
	v.SetDefault("retry.install.retryable_kinds", []string{"installation_timeout"})

	v.SetDefault("retry.network.max_attempts", 5)
	v.SetDefault("retry.network.initial_delay", "2s")
	v.SetDefault("retry.network.backoff_factor", 2.0)
	v.SetDefault("retry.network.max_delay", "60s")
	v.SetDefault("retry.network.retryable_kinds", []string{"network_timeout", "download_error"})

	v.SetDefault("history.max_entries", 1000)
}

// Validate rejects configurations the engine cannot run with
func (c *Config) Validate() error {
	if c.Install.TimeoutSeconds <= 0 {
		return fmt.Errorf("install.timeout_seconds must be positive, got %d", c.Install.TimeoutSeconds)
	}
	if c.Queue.MaxSize <= 0 {
		return fmt.Errorf("queue.max_size must be positive, got %d", c.Queue.MaxSize)
	}
	if c.Queue.RecommendedSize > c.Queue.MaxSize {
		return fmt.Errorf("queue.recommended_size (%d) exceeds queue.max_size (%d)", c.Queue.RecommendedSize, c.Queue.MaxSize)
	}
	for name, p := range map[string]RetryPolicyConfig{"install": c.Retry.Install, "network": c.Retry.Network} {
		if p.MaxAttempts < 1 {
			return fmt.Errorf("retry.%s.max_attempts must be at least 1", name)
		}
		if p.BackoffFactor <= 1 {
			return fmt.Errorf("retry.%s.backoff_factor must be greater than 1", name)
		}
		if _, err := pkgerr.ParseKinds(p.RetryableKinds); err != nil {
			return fmt.Errorf("retry.%s.retryable_kinds: %w", name, err)
		}
	}
	return nil
}

// InstallTimeout returns the hard timeout for one package manager invocation
func (c *Config) InstallTimeout() time.Duration {
	if c == nil || c.Install.TimeoutSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.Install.TimeoutSeconds) * time.Second
}

// MetadataTimeout returns the timeout for metadata inspection tools
func (c *Config) MetadataTimeout() time.Duration {
	if c == nil || c.Install.MetadataTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Install.MetadataTimeoutSeconds) * time.Second
}

// OutputTailBytes returns how much manager output is kept in error records
func (c *Config) OutputTailBytes() int {
	if c == nil || c.Install.OutputTailBytes <= 0 {
		return 2048
	}
	return c.Install.OutputTailBytes
}

// ElevationHelper returns the configured privilege elevation helper
func (c *Config) ElevationHelper() string {
	if c == nil || c.Install.ElevationHelper == "" {
		return "pkexec"
	}
	return c.Install.ElevationHelper
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	return os.ExpandEnv(path)
}
