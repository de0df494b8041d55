package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the reqflow configuration
type Config struct {
	DefaultEnvironment string            `mapstructure:"defaultEnvironment" json:"defaultEnvironment,omitempty" yaml:"defaultEnvironment,omitempty"`
	Timeout            int               `mapstructure:"timeout" json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds
	FollowRedirects    *bool             `mapstructure:"followRedirects" json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects       int               `mapstructure:"maxRedirects" json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	ValidateSSL        *bool             `mapstructure:"validateSSL" json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy              string            `mapstructure:"proxy" json:"proxy,omitempty" yaml:"proxy,omitempty"`
	CookieJar          *bool             `mapstructure:"cookieJar" json:"cookieJar,omitempty" yaml:"cookieJar,omitempty"`
	Headers            map[string]string `mapstructure:"headers" json:"headers,omitempty" yaml:"headers,omitempty"` // sent with every request
	EnvFile            string            `mapstructure:"envFile" json:"envFile,omitempty" yaml:"envFile,omitempty"`
	Output             string            `mapstructure:"output" json:"output,omitempty" yaml:"output,omitempty"` // console, json, junit, tap
	Report             string            `mapstructure:"report" json:"report,omitempty" yaml:"report,omitempty"` // html or json request log
	ReportFile         string            `mapstructure:"reportFile" json:"reportFile,omitempty" yaml:"reportFile,omitempty"`
	Database           string            `mapstructure:"database" json:"database,omitempty" yaml:"database,omitempty"`
	Parallel           *bool             `mapstructure:"parallel" json:"parallel,omitempty" yaml:"parallel,omitempty"`
	Concurrency        int               `mapstructure:"concurrency" json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	Rate               float64           `mapstructure:"rate" json:"rate,omitempty" yaml:"rate,omitempty"` // checks per second in parallel mode
	Bail               *bool             `mapstructure:"bail" json:"bail,omitempty" yaml:"bail,omitempty"`
	Verbose            *bool             `mapstructure:"verbose" json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor            *bool             `mapstructure:"noColor" json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects defaults to true.
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL defaults to true.
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetCookieJar defaults to true.
func (c *Config) GetCookieJar() bool {
	return getBool(c.CookieJar, true)
}

func (c *Config) GetParallel() bool {
	return getBool(c.Parallel, false)
}

func (c *Config) GetBail() bool {
	return getBool(c.Bail, false)
}

func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// ConfigFilenames are searched in order by FindAndLoadConfig.
var ConfigFilenames = []string{
	".reqflow.yaml",
	".reqflow.yml",
	".reqflow.json",
	"reqflow.yaml",
}

// envBindings maps config keys to the environment variables overriding them.
var envBindings = map[string]string{
	"defaultEnvironment": "REQFLOW_ENV",
	"timeout":            "REQFLOW_TIMEOUT",
	"followRedirects":    "REQFLOW_FOLLOW_REDIRECTS",
	"validateSSL":        "REQFLOW_VALIDATE_SSL",
	"proxy":              "REQFLOW_PROXY",
	"envFile":            "REQFLOW_ENV_FILE",
	"output":             "REQFLOW_OUTPUT",
	"report":             "REQFLOW_REPORT",
	"reportFile":         "REQFLOW_REPORT_FILE",
	"database":           "REQFLOW_DB",
	"parallel":           "REQFLOW_PARALLEL",
	"concurrency":        "REQFLOW_CONCURRENCY",
	"rate":               "REQFLOW_RATE",
	"bail":               "REQFLOW_BAIL",
	"verbose":            "REQFLOW_VERBOSE",
	"noColor":            "REQFLOW_NO_COLOR",
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, envName := range envBindings {
		// BindEnv only fails without a key.
		_ = v.BindEnv(key, envName)
	}
	return v
}

// LoadConfig loads path, or searches the working directory when path is empty.
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig loads the first of ConfigFilenames found in dir. Without
// one, defaults and environment overrides apply.
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}
	return decode(newViper())
}

func loadConfigFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file %s: %w", path, os.ErrNotExist)
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.DefaultEnvironment != "" {
		result.DefaultEnvironment = other.DefaultEnvironment
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.EnvFile != "" {
		result.EnvFile = other.EnvFile
	}
	if other.Output != "" {
		result.Output = other.Output
	}
	if other.Report != "" {
		result.Report = other.Report
	}
	if other.ReportFile != "" {
		result.ReportFile = other.ReportFile
	}
	if other.Database != "" {
		result.Database = other.Database
	}
	if other.Concurrency > 0 {
		result.Concurrency = other.Concurrency
	}
	if other.Rate > 0 {
		result.Rate = other.Rate
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.CookieJar != nil {
		result.CookieJar = other.CookieJar
	}
	if other.Parallel != nil {
		result.Parallel = other.Parallel
	}
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(result.Headers)+len(other.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	return &result
}

// SaveConfig writes JSON for a .json path and YAML otherwise.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
