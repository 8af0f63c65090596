// Package config loads geo-benchmark settings from config.yaml and the
// environment, and configures the global logger.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/geo-benchmark/internal/cost"
	"github.com/sells-group/geo-benchmark/internal/resilience"
)

// EnvPrefix prefixes every environment override (GEOBENCH_STORE_DRIVER, ...).
const EnvPrefix = "GEOBENCH"

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig               `yaml:"store" mapstructure:"store"`
	Log        LogConfig                 `yaml:"log" mapstructure:"log"`
	Anthropic  AnthropicConfig           `yaml:"anthropic" mapstructure:"anthropic"`
	XAI        ResponsesConfig           `yaml:"xai" mapstructure:"xai"`
	OpenAI     OpenAIConfig              `yaml:"openai" mapstructure:"openai"`
	Benchmark  BenchmarkConfig           `yaml:"benchmark" mapstructure:"benchmark"`
	Retry      RetryConfig               `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig             `yaml:"circuit" mapstructure:"circuit"`
	Pricing    map[string]cost.ModelRate `yaml:"pricing" mapstructure:"pricing"`
	Server     ServerConfig              `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig          `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig selects the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite | postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AnthropicConfig covers the knowledge-only provider, the response parser,
// and the recommendations generator.
type AnthropicConfig struct {
	Key                string  `yaml:"key" mapstructure:"key"`
	BaseURL            string  `yaml:"base_url" mapstructure:"base_url"`
	Model              string  `yaml:"model" mapstructure:"model"`
	MaxTokens          int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	DelaySecs          float64 `yaml:"delay_secs" mapstructure:"delay_secs"`
	ParserModel        string  `yaml:"parser_model" mapstructure:"parser_model"`
	ParserMaxTokens    int64   `yaml:"parser_max_tokens" mapstructure:"parser_max_tokens"`
	RecommendModel     string  `yaml:"recommend_model" mapstructure:"recommend_model"`
	RecommendMaxTokens int64   `yaml:"recommend_max_tokens" mapstructure:"recommend_max_tokens"`
}

// ResponsesConfig is a Responses API provider (xAI Grok).
type ResponsesConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	Model     string  `yaml:"model" mapstructure:"model"`
	DelaySecs float64 `yaml:"delay_secs" mapstructure:"delay_secs"`
}

// OpenAIConfig covers the web-search provider and its chat fallback.
type OpenAIConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	Model     string  `yaml:"model" mapstructure:"model"`
	ChatModel string  `yaml:"chat_model" mapstructure:"chat_model"`
	MaxTokens int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	DelaySecs float64 `yaml:"delay_secs" mapstructure:"delay_secs"`
}

// BenchmarkConfig configures run orchestration.
type BenchmarkConfig struct {
	Concurrency     int      `yaml:"concurrency" mapstructure:"concurrency"`
	CallTimeoutSecs int      `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	Providers       []string `yaml:"providers" mapstructure:"providers"`
	QueriesFile     string   `yaml:"queries_file" mapstructure:"queries_file"`
	BrandsFile      string   `yaml:"brands_file" mapstructure:"brands_file"`
	ProgressBuffer  int      `yaml:"progress_buffer" mapstructure:"progress_buffer"`
}

// CallTimeout returns the per-call timeout.
func (b BenchmarkConfig) CallTimeout() time.Duration {
	return time.Duration(b.CallTimeoutSecs) * time.Second
}

// RetryConfig tunes provider retries.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig tunes per-provider circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// Resilience merges retry and circuit tuning.
func (c *Config) Resilience() resilience.Settings {
	return resilience.Settings{
		MaxAttempts:      c.Retry.MaxAttempts,
		InitialBackoffMs: c.Retry.InitialBackoffMs,
		MaxBackoffMs:     c.Retry.MaxBackoffMs,
		Multiplier:       c.Retry.Multiplier,
		JitterFraction:   c.Retry.JitterFraction,
		FailureThreshold: c.Circuit.FailureThreshold,
		ResetTimeoutSecs: c.Circuit.ResetTimeoutSecs,
	}
}

// Rates layers configured pricing over the built-in table.
func (c *Config) Rates() cost.Rates {
	rates := cost.DefaultRates()
	for model, r := range c.Pricing {
		rates[model] = r
	}
	return rates
}

// ServerConfig configures the JSON API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures run health alerts.
type MonitoringConfig struct {
	WebhookURL          string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	ErrorRateThreshold  float64 `yaml:"error_rate_threshold" mapstructure:"error_rate_threshold"`
	CostThresholdUSD    float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	StaleRunHours       int     `yaml:"stale_run_hours" mapstructure:"stale_run_hours"`
	LookbackWindowHours int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs   int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// Environment variables accepted for each API key, in priority order.
var keyEnv = map[string][]string{
	"anthropic.key":      {EnvPrefix + "_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"},
	"xai.key":            {EnvPrefix + "_XAI_KEY", "XAI_API_KEY"},
	"openai.key":         {EnvPrefix + "_OPENAI_KEY", "OPENAI_API_KEY"},
	"store.database_url": {EnvPrefix + "_STORE_DATABASE_URL", "DATABASE_URL"},
}

// KeyEnvHint names the environment variables that set a config key, for
// error messages.
func KeyEnvHint(key string) string {
	names, ok := keyEnv[key]
	if !ok {
		return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	}
	return strings.Join(names, " or ")
}

// Load reads configuration from ./config.yaml (optional) and the environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range keyEnv {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "geo_benchmark.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.delay_secs", 1.5)
	v.SetDefault("anthropic.parser_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.parser_max_tokens", 2048)
	v.SetDefault("anthropic.recommend_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.recommend_max_tokens", 4096)

	v.SetDefault("xai.base_url", "https://api.x.ai/v1")
	v.SetDefault("xai.model", "grok-4-0709")
	v.SetDefault("xai.delay_secs", 2.5)

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.chat_model", "gpt-4o")
	v.SetDefault("openai.max_tokens", 2048)
	v.SetDefault("openai.delay_secs", 1.5)

	v.SetDefault("benchmark.concurrency", 9)
	v.SetDefault("benchmark.call_timeout_secs", 180)
	v.SetDefault("benchmark.providers", []string{"grok_web_search", "chatgpt_web_search", "claude_parametric"})
	v.SetDefault("benchmark.progress_buffer", 64)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 4000)
	v.SetDefault("retry.max_backoff_ms", 60000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)

	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 60)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("monitoring.error_rate_threshold", 0.2)
	v.SetDefault("monitoring.cost_threshold_usd", 25.0)
	v.SetDefault("monitoring.stale_run_hours", 6)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)

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

// Validation modes.
const (
	ModeRun   = "run"
	ModeServe = "serve"
	ModeRead  = "read"
)

// Validate checks the settings a command mode depends on and reports every
// problem at once.
func (c *Config) Validate(mode string) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			add("store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			add("store.database_url is required for the postgres driver (set %s)", KeyEnvHint("store.database_url"))
		}
	default:
		add("unknown store driver %q", c.Store.Driver)
	}

	switch mode {
	case ModeRun, ModeServe:
		if c.Benchmark.Concurrency < 1 || c.Benchmark.Concurrency > 64 {
			add("benchmark.concurrency must be between 1 and 64, got %d", c.Benchmark.Concurrency)
		}
		if c.Benchmark.CallTimeoutSecs < 1 {
			add("benchmark.call_timeout_secs must be > 0")
		}
		if len(c.Benchmark.Providers) == 0 {
			add("benchmark.providers is empty")
		}
		if mode == ModeServe && c.Server.Port <= 0 {
			add("server.port must be > 0")
		}
	case ModeRead:
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
