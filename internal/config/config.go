package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Zone service fetch modes.
const (
	ZoningModeBrowser = "browser"
	ZoningModeHTTP    = "http"
)

// Config holds the full application configuration.
type Config struct {
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Zoning   ZoningConfig   `yaml:"zoning" mapstructure:"zoning"`
	Browser  BrowserConfig  `yaml:"browser" mapstructure:"browser"`
	Rules    RulesConfig    `yaml:"rules" mapstructure:"rules"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// GeocodeConfig configures the Nominatim client.
type GeocodeConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Qualifier   string  `yaml:"qualifier" mapstructure:"qualifier"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
}

// ZoningConfig configures the zoning feature service.
type ZoningConfig struct {
	Mode                string `yaml:"mode" mapstructure:"mode"` // "browser" or "http"
	ServiceURL          string `yaml:"service_url" mapstructure:"service_url"`
	Layer               int    `yaml:"layer" mapstructure:"layer"`
	CodeField           string `yaml:"code_field" mapstructure:"code_field"`
	NameField           string `yaml:"name_field" mapstructure:"name_field"`
	TimeoutSecs         int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Referer             string `yaml:"referer" mapstructure:"referer"`
	BreakerThreshold    int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"` // 0 disables the breaker
	BreakerCooldownSecs int    `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// BrowserConfig configures the headless Chrome session.
type BrowserConfig struct {
	ExecPath        string `yaml:"exec_path" mapstructure:"exec_path"`
	WaitSelector    string `yaml:"wait_selector" mapstructure:"wait_selector"`
	WaitTimeoutSecs int    `yaml:"wait_timeout_secs" mapstructure:"wait_timeout_secs"`
	SettleDelaySecs int    `yaml:"settle_delay_secs" mapstructure:"settle_delay_secs"`
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	TempDir         string `yaml:"temp_dir" mapstructure:"temp_dir"`
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
}

// RulesConfig configures the rule catalog and evaluator constants.
type RulesConfig struct {
	CatalogFile     string   `yaml:"catalog_file" mapstructure:"catalog_file"`
	SpecialNeedsPct int      `yaml:"special_needs_pct" mapstructure:"special_needs_pct"`
	ElderlyPct      int      `yaml:"elderly_pct" mapstructure:"elderly_pct"`
	UnitCap         int      `yaml:"unit_cap" mapstructure:"unit_cap"`
	LowDensity      []string `yaml:"low_density" mapstructure:"low_density"`
}

// AnalysisConfig bounds a whole analysis.
type AnalysisConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrent  int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RetryAttempts  int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	MaxInFlight int      `yaml:"max_in_flight" mapstructure:"max_in_flight"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ZONING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocode.qualifier", "Curitiba, Paraná, Brasil")
	v.SetDefault("geocode.user_agent", "zoning-cli/1.0")
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.rate_limit", 1.0)
	v.SetDefault("zoning.mode", ZoningModeBrowser)
	v.SetDefault("zoning.service_url", "https://geocuritiba.ippuc.org.br/server/rest/services/GeoCuritiba/Publico_GeoCuritiba_MapaCadastral/MapServer")
	v.SetDefault("zoning.layer", 36)
	v.SetDefault("zoning.code_field", "sg_zona")
	v.SetDefault("zoning.name_field", "nm_zona")
	v.SetDefault("zoning.timeout_secs", 60)
	v.SetDefault("zoning.referer", "https://geocuritiba.ippuc.org.br/")
	v.SetDefault("zoning.breaker_threshold", 5)
	v.SetDefault("zoning.breaker_cooldown_secs", 30)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.wait_selector", "pre")
	v.SetDefault("browser.wait_timeout_secs", 10)
	v.SetDefault("browser.settle_delay_secs", 5)
	v.SetDefault("browser.timeout_secs", 45)
	v.SetDefault("browser.temp_dir", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("rules.catalog_file", "")
	v.SetDefault("rules.special_needs_pct", 2)
	v.SetDefault("rules.elderly_pct", 5)
	v.SetDefault("rules.unit_cap", 2)
	v.SetDefault("rules.low_density", []string{"ZR-1", "ZR-OC"})
	v.SetDefault("analysis.timeout_secs", 120)
	v.SetDefault("batch.max_concurrent", 2)
	v.SetDefault("batch.retry_attempts", 2)
	v.SetDefault("batch.retry_backoff_ms", 2000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_in_flight", 4)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// Validate checks the settings a command needs. mode is "analyze",
// "batch", or "serve". All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Zoning.Mode {
	case ZoningModeBrowser, ZoningModeHTTP:
	default:
		errs = append(errs, fmt.Sprintf("zoning.mode must be %q or %q", ZoningModeBrowser, ZoningModeHTTP))
	}
	if c.Zoning.ServiceURL == "" {
		errs = append(errs, "zoning.service_url is required")
	}
	if c.Geocode.RateLimit <= 0 {
		errs = append(errs, "geocode.rate_limit must be > 0")
	}
	if c.Rules.SpecialNeedsPct < 0 || c.Rules.SpecialNeedsPct > 100 || c.Rules.ElderlyPct < 0 || c.Rules.ElderlyPct > 100 {
		errs = append(errs, "rules parking percentages must be between 0 and 100")
	}

	switch mode {
	case "analyze":
	case "batch":
		if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 16 {
			errs = append(errs, "batch.max_concurrent must be between 1 and 16")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.MaxInFlight < 1 {
			errs = append(errs, "server.max_in_flight must be >= 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Secs converts a seconds setting to a Duration.
func Secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// NewLogger builds a zap logger: JSON production output by default,
// colored console output when Format is "console".
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	return logger, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	return nil
}
