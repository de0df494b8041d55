package config

const (
	DefaultTimeoutMs    = 30000
	DefaultMaxRedirects = 10
	DefaultConcurrency  = 5
)

// DefaultConfig returns a configuration with default values. Unset
// booleans fall back to their getter defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout:      DefaultTimeoutMs,
		MaxRedirects: DefaultMaxRedirects,
		Output:       "console",
		Concurrency:  DefaultConcurrency,
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	d := DefaultConfig()
	return c.DefaultEnvironment == d.DefaultEnvironment &&
		c.Timeout == d.Timeout &&
		c.MaxRedirects == d.MaxRedirects &&
		c.Proxy == d.Proxy &&
		len(c.Headers) == 0 &&
		c.EnvFile == d.EnvFile &&
		c.Output == d.Output &&
		c.Report == d.Report &&
		c.ReportFile == d.ReportFile &&
		c.Database == d.Database &&
		c.Concurrency == d.Concurrency &&
		c.Rate == d.Rate &&
		c.FollowRedirects == nil &&
		c.ValidateSSL == nil &&
		c.CookieJar == nil &&
		c.Parallel == nil &&
		c.Bail == nil &&
		c.Verbose == nil &&
		c.NoColor == nil
}
