// Package config loads the application configuration.
//
// Sources, lowest to highest precedence: built-in defaults, the config file,
// SLURMHELPER_* environment variables, runtime overrides (normally CLI flags).
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// AppName names the config directory and env prefix.
const AppName = "slurmhelper"

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SLURMHELPER"

// Config is the application configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Check   CheckConfig   `mapstructure:"check"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

// PathsConfig locates the working tree and its inputs. Empty Spec and
// Database resolve relative to Base.
type PathsConfig struct {
	Base     string `mapstructure:"base"`
	Spec     string `mapstructure:"spec"`
	Database string `mapstructure:"database"`
}

// CheckConfig tunes log inference.
type CheckConfig struct {
	Concurrency   int     `mapstructure:"concurrency"`
	ReadRateLimit float64 `mapstructure:"read_rate_limit"`
	// Timeout bounds a whole check run (0 = none).
	Timeout time.Duration `mapstructure:"timeout"`
}

// EnvSpec maps an environment variable to a config key.
type EnvSpec struct {
	Name string
	Key  string
}

var (
	configMu   sync.RWMutex
	appConfig  *Config
	configFile string
)

// SetConfigFile selects an explicit config file. An explicit file must exist.
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	configFile = strings.TrimSpace(path)
}

// DefaultConfigFile returns <user config dir>/slurmhelper/config.yaml.
func DefaultConfigFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, AppName, "config.yaml")
}

// SetDefaults registers built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "console")
	v.SetDefault("paths.base", ".")
	v.SetDefault("paths.spec", "")
	v.SetDefault("paths.database", "")
	v.SetDefault("check.concurrency", 8)
	v.SetDefault("check.read_rate_limit", 0)
	v.SetDefault("check.timeout", "0s")
}

func getEnvSpecs() []EnvSpec {
	return []EnvSpec{
		{Name: EnvPrefix + "_LOG_LEVEL", Key: "logging.level"},
		{Name: EnvPrefix + "_LOG_PROFILE", Key: "logging.profile"},
		{Name: EnvPrefix + "_BASE", Key: "paths.base"},
		{Name: EnvPrefix + "_SPEC", Key: "paths.spec"},
		{Name: EnvPrefix + "_DATABASE", Key: "paths.database"},
		{Name: EnvPrefix + "_CHECK_CONCURRENCY", Key: "check.concurrency"},
		{Name: EnvPrefix + "_READ_RATE_LIMIT", Key: "check.read_rate_limit"},
		{Name: EnvPrefix + "_CHECK_TIMEOUT", Key: "check.timeout"},
	}
}

// Load builds the configuration and makes it available through GetConfig.
// Each overrides map is nested like the config file ({"paths": {"base": ...}}).
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)

	configMu.RLock()
	explicit := configFile
	configMu.RUnlock()

	if err := readConfigFile(v, explicit); err != nil {
		return nil, err
	}

	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Key, spec.Name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", spec.Name, err)
		}
	}

	for _, o := range overrides {
		for key, val := range flatten("", o) {
			v.Set(key, val)
		}
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()
	return &cfg, nil
}

func readConfigFile(v *viper.Viper, explicit string) error {
	path := explicit
	if path == "" {
		path = DefaultConfigFile()
		if path == "" {
			return nil
		}
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", path)
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	return nil
}

// flatten turns nested maps into dotted viper keys.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}

// GetConfig returns the most recently loaded config, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var problems []string
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Profile) {
	case "console", "structured":
	default:
		problems = append(problems, fmt.Sprintf("logging.profile %q is not console or structured", c.Logging.Profile))
	}
	if c.Check.Concurrency < 1 {
		problems = append(problems, "check.concurrency must be at least 1")
	}
	if c.Check.ReadRateLimit < 0 {
		problems = append(problems, "check.read_rate_limit must not be negative")
	}
	if c.Check.Timeout < 0 {
		problems = append(problems, "check.timeout must not be negative")
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

// SpecPath resolves the job spec path: Paths.Spec, or <base>/spec.yaml.
func (c *Config) SpecPath(base string) string {
	if c.Paths.Spec != "" {
		return c.Paths.Spec
	}
	return filepath.Join(base, "spec.yaml")
}

// DatabasePath resolves the job database path: Paths.Database, or <base>/db.csv.
func (c *Config) DatabasePath(defaultPath string) string {
	if c.Paths.Database != "" {
		return c.Paths.Database
	}
	return defaultPath
}
