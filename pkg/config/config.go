// Package config loads and validates the replayer run configuration.
//
// Values are layered in viper's usual order: defaults, then the YAML config
// file, then REPLAYER_* environment variables, then command-line flags.
// The resulting Config is treated as immutable for the rest of the process.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "REPLAYER"

// Sentinel validation errors.
var (
	ErrMissingOption     = errors.New("missing required option")
	ErrInvalidBatchSize  = errors.New("batch size must be positive")
	ErrInvalidDelay      = errors.New("delay must not be negative")
	ErrInvalidMaxBuffer  = errors.New("invalid max buffer size")
	ErrInvalidEnumerator = errors.New("unknown enumerator")
	ErrInvalidReport     = errors.New("unknown report format")
	ErrInvalidLogLevel   = errors.New("invalid log level")
	ErrInvalidLogFormat  = errors.New("unknown log format")
	ErrInvalidTimeout    = errors.New("cache timeout must be positive")
)

// MissingOptionsError lists every required option that was not supplied.
// Options are named by their command-line flag.
type MissingOptionsError struct {
	Options []string
}

func (e *MissingOptionsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingOption, strings.Join(e.Options, ", "))
}

// Is makes MissingOptionsError match ErrMissingOption.
func (e *MissingOptionsError) Is(target error) bool {
	return target == ErrMissingOption
}

// Config is the complete run configuration.
type Config struct {
	Replay        ReplayConfig        `mapstructure:"replay"`
	Repository    RepositoryConfig    `mapstructure:"repository"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Report        ReportConfig        `mapstructure:"report"`
}

// ReplayConfig holds the replay loop parameters.
type ReplayConfig struct {
	Source     string        `mapstructure:"source"`
	Target     string        `mapstructure:"target"`
	BatchSize  int           `mapstructure:"batch_size"`
	Delay      time.Duration `mapstructure:"delay"`
	MaxBuffer  string        `mapstructure:"max_buffer"`
	Enumerator string        `mapstructure:"enumerator"`
	DryRun     bool          `mapstructure:"dry_run"`

	// MaxBufferBytes is MaxBuffer parsed during validation.
	MaxBufferBytes int64 `mapstructure:"-"`
}

// RepositoryConfig identifies the repository being onboarded.
type RepositoryConfig struct {
	Owner string `mapstructure:"owner"`
	Name  string `mapstructure:"name"`
	Path  string `mapstructure:"path"`
}

// CacheConfig holds cache service settings.
type CacheConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Await       bool          `mapstructure:"await"`
	LegacyQuery bool          `mapstructure:"legacy_query"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds tracing and metrics export settings.
type ObservabilityConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	Environment  string  `mapstructure:"environment"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
}

// ReportConfig selects the end-of-run summary format.
type ReportConfig struct {
	Format string `mapstructure:"format"`
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"source":        "replay.source",
	"target":        "replay.target",
	"batch-size":    "replay.batch_size",
	"delay":         "replay.delay",
	"max-buffer":    "replay.max_buffer",
	"enumerator":    "replay.enumerator",
	"dry-run":       "replay.dry_run",
	"owner":         "repository.owner",
	"repo":          "repository.name",
	"path":          "repository.path",
	"cache-api":     "cache.base_url",
	"cache-timeout": "cache.timeout",
	"cache-await":   "cache.await",
	"legacy-query":  "cache.legacy_query",
	"log-level":     "logging.level",
	"log-format":    "logging.format",
	"otlp-endpoint": "observability.otlp_endpoint",
	"metrics-addr":  "observability.metrics_addr",
	"report":        "report.format",
}

// requiredOptions lists required keys with the flag used to name them.
var requiredOptions = []struct{ key, flag string }{
	{"replay.target", "target"},
	{"repository.owner", "owner"},
	{"repository.name", "repo"},
	{"repository.path", "path"},
}

// LoadOptions select the config file and flag set.
type LoadOptions struct {
	// Path is an explicit config file. Empty searches ./replayer.yaml and $HOME/.replayer/replayer.yaml.
	Path string

	// Flags, when set, override file and environment values for flags the user changed.
	Flags *pflag.FlagSet
}

// LoadConfig loads configuration from defaults, file, environment and flags, then validates it.
func LoadConfig(opts LoadOptions) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if opts.Path != "" {
		viperCfg.SetConfigFile(opts.Path)
	} else {
		viperCfg.SetConfigName("replayer")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME/.replayer")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	if opts.Flags != nil {
		bindErr := bindFlags(viperCfg, opts.Flags)
		if bindErr != nil {
			return nil, bindErr
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func bindFlags(viperCfg *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}

		err := viperCfg.BindPFlag(key, flag)
		if err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	return nil
}

// setDefaults sets default configuration values. Required keys default to
// empty so environment variables for them are picked up by Unmarshal.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("replay.source", DefaultSource)
	viperCfg.SetDefault("replay.target", "")
	viperCfg.SetDefault("replay.batch_size", DefaultBatchSize)
	viperCfg.SetDefault("replay.delay", DefaultDelay)
	viperCfg.SetDefault("replay.max_buffer", DefaultMaxBuffer)
	viperCfg.SetDefault("replay.enumerator", DefaultEnumerator)
	viperCfg.SetDefault("replay.dry_run", false)

	viperCfg.SetDefault("repository.owner", "")
	viperCfg.SetDefault("repository.name", "")
	viperCfg.SetDefault("repository.path", "")

	viperCfg.SetDefault("cache.base_url", DefaultCacheBaseURL)
	viperCfg.SetDefault("cache.timeout", DefaultCacheTimeout)
	viperCfg.SetDefault("cache.await", false)
	viperCfg.SetDefault("cache.legacy_query", false)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_headers", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.sample_ratio", 0.0)
	viperCfg.SetDefault("observability.environment", "")
	viperCfg.SetDefault("observability.metrics_addr", "")

	viperCfg.SetDefault("report.format", DefaultReportFormat)
}

// validateConfig reports every missing required option first, then the first
// invalid value.
func validateConfig(config *Config) error {
	values := map[string]string{
		"replay.target":    config.Replay.Target,
		"repository.owner": config.Repository.Owner,
		"repository.name":  config.Repository.Name,
		"repository.path":  config.Repository.Path,
	}

	var missing []string

	for _, opt := range requiredOptions {
		if strings.TrimSpace(values[opt.key]) == "" {
			missing = append(missing, opt.flag)
		}
	}

	if len(missing) > 0 {
		return &MissingOptionsError{Options: missing}
	}

	if config.Replay.BatchSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, config.Replay.BatchSize)
	}

	if config.Replay.Delay < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDelay, config.Replay.Delay)
	}

	size, err := humanize.ParseBytes(config.Replay.MaxBuffer)
	if err != nil || size == 0 {
		return fmt.Errorf("%w: %q", ErrInvalidMaxBuffer, config.Replay.MaxBuffer)
	}

	config.Replay.MaxBufferBytes = int64(size)

	if !slices.Contains([]string{EnumeratorCLI, EnumeratorLibgit2}, config.Replay.Enumerator) {
		return fmt.Errorf("%w: %q", ErrInvalidEnumerator, config.Replay.Enumerator)
	}

	if config.Cache.Timeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, config.Cache.Timeout)
	}

	if !slices.Contains([]string{ReportText, ReportJSON, ReportYAML, ReportNone}, config.Report.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidReport, config.Report.Format)
	}

	if !slices.Contains([]string{LogFormatText, LogFormatJSON}, config.Logging.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	_, err = config.Logging.SlogLevel()

	return err
}

// SlogLevel parses the configured log level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(l.Level))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, l.Level)
	}

	return level, nil
}
