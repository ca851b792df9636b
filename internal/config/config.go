package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	DataDir      string `mapstructure:"data_dir" yaml:"data_dir"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat    string `mapstructure:"log_format" yaml:"log_format"`
	OutputFormat string `mapstructure:"output_format" yaml:"output_format"`

	// Parsing
	Delimiter        string   `mapstructure:"delimiter" yaml:"delimiter"`
	DecimalSeparator string   `mapstructure:"decimal_separator" yaml:"decimal_separator"`
	NullValues       []string `mapstructure:"null_values" yaml:"null_values"`

	// Operation defaults
	CompareSampleLimit int     `mapstructure:"compare_sample_limit" yaml:"compare_sample_limit"`
	AnomalyMultiplier  float64 `mapstructure:"anomaly_multiplier" yaml:"anomaly_multiplier"`

	// Dataset cache, cost measured in cells
	CacheEnabled bool  `mapstructure:"cache_enabled" yaml:"cache_enabled"`
	CacheMaxCost int64 `mapstructure:"cache_max_cost" yaml:"cache_max_cost"`

	// HTTP server
	ServerAddr        string `mapstructure:"server_addr" yaml:"server_addr"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
	MaxUploadMB       int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{
	"data_dir", "log_level", "log_format", "output_format",
	"delimiter", "decimal_separator", "null_values",
	"compare_sample_limit", "anomaly_multiplier",
	"cache_enabled", "cache_max_cost",
	"server_addr", "request_timeout_sec", "max_upload_mb",
}

// DefaultPath returns ~/.dfops/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".dfops", "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.dfops/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from .env, environment, file and defaults.
// Precedence: env (DFOPS_*) > config file > defaults. A .env file in the
// working directory seeds the environment without overriding it.
func Load(cfgFile string) (*Global, error) {
	// optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("DFOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data_dir", ".")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("output_format", "markdown")
	v.SetDefault("delimiter", "")
	v.SetDefault("decimal_separator", "")
	v.SetDefault("null_values", []string{})
	v.SetDefault("compare_sample_limit", 100)
	v.SetDefault("anomaly_multiplier", 1.5)
	v.SetDefault("cache_enabled", true)
	v.SetDefault("cache_max_cost", 50_000_000)
	v.SetDefault("server_addr", ":8651")
	v.SetDefault("request_timeout_sec", 60)
	v.SetDefault("max_upload_mb", 200)

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, ".dfops"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read; a malformed file is an error
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks enumerations and single-character settings.
func (c *Global) Validate() error {
	switch strings.ToLower(c.OutputFormat) {
	case "json", "yaml", "markdown":
	default:
		return fmt.Errorf("output_format must be json, yaml or markdown, got %q", c.OutputFormat)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if _, err := ParseRune("delimiter", c.Delimiter); err != nil {
		return err
	}
	if _, err := ParseRune("decimal_separator", c.DecimalSeparator); err != nil {
		return err
	}
	if c.RequestTimeoutSec < 0 || c.MaxUploadMB < 0 {
		return fmt.Errorf("request_timeout_sec and max_upload_mb must not be negative")
	}
	return nil
}

// ParseRune reads a single-character setting. "" means unset, and the
// names "tab", "\t", "comma", "semicolon" and "pipe" are accepted.
func ParseRune(key, s string) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	case "comma":
		return ',', nil
	case "semicolon":
		return ';', nil
	case "pipe":
		return '|', nil
	}
	r := []rune(s)
	if len(r) != 1 {
		return 0, fmt.Errorf("%s must be a single character, got %q", key, s)
	}
	return r[0], nil
}

// Set assigns one key from its string form and validates the result.
func (c *Global) Set(key, val string) error {
	next := *c
	switch key {
	case "data_dir":
		next.DataDir = val
	case "log_level":
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "warning", "error":
			next.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
		}
	case "log_format":
		next.LogFormat = strings.ToLower(val)
	case "output_format":
		next.OutputFormat = strings.ToLower(val)
	case "delimiter":
		next.Delimiter = val
	case "decimal_separator":
		next.DecimalSeparator = val
	case "null_values":
		next.NullValues = nil
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				next.NullValues = append(next.NullValues, s)
			}
		}
	case "compare_sample_limit":
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for compare_sample_limit: %w", err)
		}
		next.CompareSampleLimit = i
	case "anomaly_multiplier":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid positive float for anomaly_multiplier: %v", val)
		}
		next.AnomalyMultiplier = f
	case "cache_enabled":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for cache_enabled: %w", err)
		}
		next.CacheEnabled = b
	case "cache_max_cost":
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil || i <= 0 {
			return fmt.Errorf("invalid positive int for cache_max_cost: %v", val)
		}
		next.CacheMaxCost = i
	case "server_addr":
		next.ServerAddr = val
	case "request_timeout_sec":
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for request_timeout_sec: %w", err)
		}
		next.RequestTimeoutSec = i
	case "max_upload_mb":
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for max_upload_mb: %w", err)
		}
		next.MaxUploadMB = i
	default:
		return fmt.Errorf("unknown key: %s (known: %s)", key, strings.Join(Keys, ", "))
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
