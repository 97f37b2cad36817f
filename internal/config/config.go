package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/quotesvc/internal/core"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Provider names accepted in provider.name.
const (
	ProviderYahoo      = "yahoo"
	ProviderTwelveData = "twelvedata"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Provider ProviderConfig `mapstructure:"provider"`
	Quote    QuoteConfig    `mapstructure:"quote"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ProviderConfig selects and configures the market-data provider.
type ProviderConfig struct {
	Name       string           `mapstructure:"name"`
	Timeout    time.Duration    `mapstructure:"timeout"` // 0 = no client timeout
	Yahoo      YahooConfig      `mapstructure:"yahoo"`
	TwelveData TwelveDataConfig `mapstructure:"twelvedata"`
}

type YahooConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	Interval    string `mapstructure:"interval"`
	LatestRange string `mapstructure:"latest_range"`
}

type TwelveDataConfig struct {
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	Interval string `mapstructure:"interval"`
}

// QuoteConfig holds the fixed parameters of the retrieval operations.
// Range bounds are RFC 3339 timestamps and both are inclusive.
type QuoteConfig struct {
	Symbol     string `mapstructure:"symbol"`
	RangeStart string `mapstructure:"range_start"`
	RangeEnd   string `mapstructure:"range_end"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"` // empty keeps the logger preset
}

// Range parses the history bounds.
func (q QuoteConfig) Range() (start, end time.Time, err error) {
	start, err = time.Parse(time.RFC3339, q.RangeStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("range_start: %w", err)
	}
	end, err = time.Parse(time.RFC3339, q.RangeEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("range_end: %w", err)
	}
	return start.UTC(), end.UTC(), nil
}

// Load reads configuration from file. An empty path loads defaults and
// environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so that partial files and plain
// environment variables both resolve.
func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("provider.name", d.Provider.Name)
	v.SetDefault("provider.timeout", d.Provider.Timeout)
	v.SetDefault("provider.yahoo.base_url", d.Provider.Yahoo.BaseURL)
	v.SetDefault("provider.yahoo.interval", d.Provider.Yahoo.Interval)
	v.SetDefault("provider.yahoo.latest_range", d.Provider.Yahoo.LatestRange)
	v.SetDefault("provider.twelvedata.api_key", d.Provider.TwelveData.APIKey)
	v.SetDefault("provider.twelvedata.base_url", d.Provider.TwelveData.BaseURL)
	v.SetDefault("provider.twelvedata.interval", d.Provider.TwelveData.Interval)
	v.SetDefault("quote.symbol", d.Quote.Symbol)
	v.SetDefault("quote.range_start", d.Quote.RangeStart)
	v.SetDefault("quote.range_end", d.Quote.RangeEnd)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
	v.SetDefault("log.level", d.Log.Level)
}

// Defaults returns the configuration the service has always run with:
// AAPL on Yahoo, January 2020 history, listening on 127.0.0.1:3000.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 3000,
		},
		Provider: ProviderConfig{
			Name:    ProviderYahoo,
			Timeout: 10 * time.Second,
			Yahoo: YahooConfig{
				BaseURL:     "https://query1.finance.yahoo.com/v8/finance/chart",
				Interval:    "1d",
				LatestRange: "1mo",
			},
			TwelveData: TwelveDataConfig{
				BaseURL:  "https://api.twelvedata.com",
				Interval: "1day",
			},
		},
		Quote: QuoteConfig{
			Symbol:     core.DefaultSymbol,
			RangeStart: "2020-01-01T00:00:00Z",
			RangeEnd:   "2020-01-31T23:59:59Z",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	// Provider validation
	if c.Provider.Timeout < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("provider timeout cannot be negative, got %s", c.Provider.Timeout))
	}
	switch c.Provider.Name {
	case ProviderYahoo:
		if c.Provider.Yahoo.BaseURL == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("yahoo base_url required when provider is yahoo"))
		}
	case ProviderTwelveData:
		if c.Provider.TwelveData.APIKey == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("twelvedata api_key required when provider is twelvedata"))
		}
	case "":
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("provider name required"))
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown provider %q", c.Provider.Name))
	}

	// Quote validation
	if strings.TrimSpace(c.Quote.Symbol) == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("quote symbol required"))
	}
	start, end, err := c.Quote.Range()
	if err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	if end.Before(start) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("range_end %s is before range_start %s", c.Quote.RangeEnd, c.Quote.RangeStart))
	}

	// Metrics validation
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("metrics path must start with '/', got %q", c.Metrics.Path))
	}

	if c.Log.Level != "" {
		if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
			return core.WrapError(core.ErrConfigInvalid, err)
		}
	}

	return nil
}
