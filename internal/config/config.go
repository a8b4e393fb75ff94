package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/image/tiff"
)

// EnvPrefix is the prefix of environment variables that override config keys.
const EnvPrefix = "METAZIP"

// Config represents the main configuration structure
type Config struct {
	OutputDirectory     string            `mapstructure:"output_directory"`
	OutputSuffix        string            `mapstructure:"output_suffix"`
	SupportedExtensions []string          `mapstructure:"supported_extensions"`
	Limits              LimitsConfig      `mapstructure:"limits"`
	Processing          ProcessingConfig  `mapstructure:"processing"`
	Performance         PerformanceConfig `mapstructure:"performance"`
	Server              ServerConfig      `mapstructure:"server"`
	Logging             LoggingConfig     `mapstructure:"logging"`
}

// LimitsConfig bounds the input accepted per file and per run
type LimitsConfig struct {
	MaxFileSize    int64 `mapstructure:"max_file_size"`
	MaxFilesPerRun int   `mapstructure:"max_files_per_run"`
	// MaxDecodeBytes bounds the pixel grid allocated for TIFF re-encoding
	// and dimension queries.
	MaxDecodeBytes int64 `mapstructure:"max_decode_bytes"`
}

// ProcessingConfig contains file processing settings
type ProcessingConfig struct {
	DuplicateHandling  string `mapstructure:"duplicate_handling"`
	DryRun             bool   `mapstructure:"dry_run"`
	ZipThreshold       int    `mapstructure:"zip_threshold"`
	VerifyWithExiftool bool   `mapstructure:"verify_with_exiftool"`
	TIFFCompression    string `mapstructure:"tiff_compression"`
	JPEGQuality        int    `mapstructure:"jpeg_quality"`
}

// PerformanceConfig contains performance tuning settings
type PerformanceConfig struct {
	BatchSize     int `mapstructure:"batch_size"`
	WorkerThreads int `mapstructure:"worker_threads"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

var tiffCompressions = map[string]tiff.CompressionType{
	"none":    tiff.Uncompressed,
	"deflate": tiff.Deflate,
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		OutputDirectory: "",
		OutputSuffix:    "_clean",
		SupportedExtensions: []string{
			".jpg", ".jpeg", ".png", ".webp", ".tif", ".tiff",
		},
		Limits: LimitsConfig{
			MaxFileSize:    50 * 1024 * 1024,
			MaxFilesPerRun: 0, // 0 means no limit
			MaxDecodeBytes: 512 * 1024 * 1024,
		},
		Processing: ProcessingConfig{
			DuplicateHandling:  "rename", // rename, skip, overwrite
			DryRun:             false,
			ZipThreshold:       5,
			VerifyWithExiftool: false,
			TIFFCompression:    "none",
			JPEGQuality:        95,
		},
		Performance: PerformanceConfig{
			BatchSize:     100,
			WorkerThreads: 4,
		},
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from a .env file, a YAML config file and
// METAZIP_* environment variables, in increasing order of precedence.
func LoadConfig(configPath string) (*Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	config := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.metazip")
		v.AddConfigPath("/etc/metazip")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, config)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the config file.
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("output_directory", c.OutputDirectory)
	v.SetDefault("output_suffix", c.OutputSuffix)
	v.SetDefault("supported_extensions", c.SupportedExtensions)
	v.SetDefault("limits.max_file_size", c.Limits.MaxFileSize)
	v.SetDefault("limits.max_files_per_run", c.Limits.MaxFilesPerRun)
	v.SetDefault("limits.max_decode_bytes", c.Limits.MaxDecodeBytes)
	v.SetDefault("processing.duplicate_handling", c.Processing.DuplicateHandling)
	v.SetDefault("processing.dry_run", c.Processing.DryRun)
	v.SetDefault("processing.zip_threshold", c.Processing.ZipThreshold)
	v.SetDefault("processing.verify_with_exiftool", c.Processing.VerifyWithExiftool)
	v.SetDefault("processing.tiff_compression", c.Processing.TIFFCompression)
	v.SetDefault("processing.jpeg_quality", c.Processing.JPEGQuality)
	v.SetDefault("performance.batch_size", c.Performance.BatchSize)
	v.SetDefault("performance.worker_threads", c.Performance.WorkerThreads)
	v.SetDefault("server.port", c.Server.Port)
	v.SetDefault("server.read_timeout", c.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", c.Server.WriteTimeout)
	v.SetDefault("server.allowed_origins", c.Server.AllowedOrigins)
	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.file_path", c.Logging.FilePath)
	v.SetDefault("logging.max_size", c.Logging.MaxSize)
	v.SetDefault("logging.max_backups", c.Logging.MaxBackups)
	v.SetDefault("logging.max_age", c.Logging.MaxAge)
	v.SetDefault("logging.compress", c.Logging.Compress)
}

// Validate validates and normalizes the configuration
func (c *Config) Validate() error {
	if c.OutputDirectory != "" {
		c.OutputDirectory = expandPath(c.OutputDirectory)
		if !isValidPath(c.OutputDirectory) {
			return fmt.Errorf("output_directory does not exist or is not accessible: %s", c.OutputDirectory)
		}
	}

	if c.OutputSuffix == "" {
		return fmt.Errorf("output_suffix must not be empty")
	}
	if strings.ContainsAny(c.OutputSuffix, `/\`) {
		return fmt.Errorf("output_suffix must not contain path separators: %s", c.OutputSuffix)
	}

	validStrategies := map[string]bool{
		"rename":    true,
		"skip":      true,
		"overwrite": true,
	}
	if !validStrategies[c.Processing.DuplicateHandling] {
		return fmt.Errorf("invalid duplicate_handling strategy: %s (valid: rename, skip, overwrite)",
			c.Processing.DuplicateHandling)
	}

	c.Processing.TIFFCompression = strings.ToLower(c.Processing.TIFFCompression)
	if _, ok := tiffCompressions[c.Processing.TIFFCompression]; !ok {
		return fmt.Errorf("invalid tiff_compression: %s (valid: none, deflate)", c.Processing.TIFFCompression)
	}
	if c.Processing.JPEGQuality < 1 || c.Processing.JPEGQuality > 100 {
		return fmt.Errorf("invalid jpeg_quality: %d (valid: 1-100)", c.Processing.JPEGQuality)
	}

	c.SupportedExtensions = normalizeExtensions(c.SupportedExtensions)
	if len(c.SupportedExtensions) == 0 {
		return fmt.Errorf("supported_extensions must not be empty")
	}

	if c.Limits.MaxFileSize <= 0 {
		return fmt.Errorf("limits.max_file_size must be positive: %d", c.Limits.MaxFileSize)
	}
	if c.Limits.MaxDecodeBytes <= 0 {
		return fmt.Errorf("limits.max_decode_bytes must be positive: %d", c.Limits.MaxDecodeBytes)
	}
	if c.Limits.MaxFilesPerRun < 0 {
		c.Limits.MaxFilesPerRun = 0
	}
	if c.Processing.ZipThreshold <= 0 {
		c.Processing.ZipThreshold = 5
	}

	if c.Performance.BatchSize <= 0 {
		c.Performance.BatchSize = 100
	}
	if c.Performance.WorkerThreads <= 0 {
		c.Performance.WorkerThreads = 4
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// TIFFCompressionType returns the TIFF encoder compression for the
// configured name.
func (c *Config) TIFFCompressionType() tiff.CompressionType {
	return tiffCompressions[c.Processing.TIFFCompression]
}

// IsSupportedExtension checks if the extension is one the cleaner picks up
func (c *Config) IsSupportedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, supportedExt := range c.SupportedExtensions {
		if ext == supportedExt {
			return true
		}
	}
	return false
}

// Helper functions

func expandPath(path string) string {
	expanded := os.ExpandEnv(path)
	if strings.HasPrefix(expanded, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			expanded = filepath.Join(home, expanded[1:])
		}
	}
	return expanded
}

func isValidPath(path string) bool {
	if path == "" {
		return false
	}
	stat, err := os.Stat(path)
	return err == nil && stat.IsDir()
}

func normalizeExtensions(extensions []string) []string {
	normalized := make([]string, 0, len(extensions))
	seen := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if !seen[ext] {
			seen[ext] = true
			normalized = append(normalized, ext)
		}
	}
	return normalized
}
