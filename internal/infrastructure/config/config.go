package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`

	SAR        SARConfig        `koanf:"sar"`
	Provider   ProviderConfig   `koanf:"provider"`
	Router     RouterConfig     `koanf:"router"`
	Breaker    BreakerConfig    `koanf:"breaker"`
	Cache      CacheConfig      `koanf:"cache"`
	Budget     BudgetConfig     `koanf:"budget"`
	Risk       RiskConfig       `koanf:"risk"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
	AI         AIConfig         `koanf:"ai"`
	Security   SecurityConfig   `koanf:"security"`
	Notify     NotifyConfig     `koanf:"notify"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	MetricsPort     int           `koanf:"metrics_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL      string `koanf:"url"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// SARConfig controls the search-assess-refine loop.
type SARConfig struct {
	ConfidenceThreshold           float64 `koanf:"confidence_threshold"`
	FoundationConfidenceThreshold float64 `koanf:"foundation_confidence_threshold"`
	MaxIterationsPerType          int     `koanf:"max_iterations_per_type"`
	FoundationMaxIterations       int     `koanf:"foundation_max_iterations"`
	MinGainThreshold              float64 `koanf:"min_gain_threshold"`
	MinValidationConfidence       float64 `koanf:"min_validation_confidence"`
	MinFindingConfidence          float64 `koanf:"min_finding_confidence"`
}

type ProviderConfig struct {
	MaxConcurrentQueries int `koanf:"max_concurrent_queries"`
}

type RouterConfig struct {
	MaxRetries     int           `koanf:"max_retries"`
	BaseRetryDelay time.Duration `koanf:"base_retry_delay"`
	MaxRetryDelay  time.Duration `koanf:"max_retry_delay"`
	RetryJitter    float64       `koanf:"retry_jitter"`
	Timeout        time.Duration `koanf:"timeout"`
	BatchFanOut    int           `koanf:"batch_fan_out"`
	// MaxConcurrentOverall caps in-flight provider calls across all routes
	// in the process. Zero disables the cap.
	MaxConcurrentOverall int `koanf:"max_concurrent_overall"`
}

type BreakerConfig struct {
	FailureThreshold int           `koanf:"failure_threshold"`
	SuccessThreshold int           `koanf:"success_threshold"`
	Timeout          time.Duration `koanf:"timeout"`
	HalfOpenMaxCalls int           `koanf:"half_open_max_calls"`
}

// TTLPair is a freshness window: fresh until FreshTTL, stale until StaleTTL.
type TTLPair struct {
	FreshTTL time.Duration `koanf:"fresh_ttl"`
	StaleTTL time.Duration `koanf:"stale_ttl"`
}

type CacheConfig struct {
	Criminal   TTLPair `koanf:"criminal"`
	Credit     TTLPair `koanf:"credit"`
	Employment TTLPair `koanf:"employment"`
	Education  TTLPair `koanf:"education"`
	Identity   TTLPair `koanf:"identity"`
	Default    TTLPair `koanf:"default"`
}

type BudgetConfig struct {
	WarningThreshold float64 `koanf:"warning_threshold"`
	HardLimit        bool    `koanf:"hard_limit"`
}

type RiskConfig struct {
	MinValidationConfidence float64 `koanf:"min_validation_confidence"`
}

type MonitoringConfig struct {
	AlertWindowHours          int           `koanf:"alert_window_hours"`
	MaxAlertsBeforeEscalation int           `koanf:"max_alerts_before_escalation"`
	NotificationRetryCount    int           `koanf:"notification_retry_count"`
	NotificationRetryDelay    time.Duration `koanf:"notification_retry_delay"`
	SchedulerInterval         time.Duration `koanf:"scheduler_interval"`
	MaxParallelChecks         int           `koanf:"max_parallel_checks"`
}

// AIConfig controls the model-assisted classifier. An empty API key turns
// the assist off; rule classification alone still runs.
type AIConfig struct {
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model"`
}

type SecurityConfig struct {
	// EncryptionKey seals identifier values and cached raw payloads.
	// Hex-encoded, 32 bytes once decoded.
	EncryptionKey string `koanf:"encryption_key"`
}

type NotifyConfig struct {
	WebhookURL    string `koanf:"webhook_url"`
	WebhookSecret string `koanf:"webhook_secret"`
}

func day(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

// Defaults returns the built-in configuration. Every value is overridable via
// configs/config.yaml and then VSC_-prefixed environment variables.
func Defaults() *Config {
	return &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			MetricsPort:     9090,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		SAR: SARConfig{
			ConfidenceThreshold:           0.85,
			FoundationConfidenceThreshold: 0.90,
			MaxIterationsPerType:          3,
			FoundationMaxIterations:       4,
			MinGainThreshold:              0.10,
			MinValidationConfidence:       0.7,
			MinFindingConfidence:          0.5,
		},
		Provider: ProviderConfig{
			MaxConcurrentQueries: 10,
		},
		Router: RouterConfig{
			MaxRetries:           3,
			BaseRetryDelay:       500 * time.Millisecond,
			MaxRetryDelay:        10 * time.Second,
			RetryJitter:          0.1,
			Timeout:              30 * time.Second,
			BatchFanOut:          10,
			MaxConcurrentOverall: 20,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 3,
			Timeout:          60 * time.Second,
			HalfOpenMaxCalls: 3,
		},
		Cache: CacheConfig{
			Criminal:   TTLPair{FreshTTL: day(7), StaleTTL: day(14)},
			Credit:     TTLPair{FreshTTL: day(30), StaleTTL: day(30)},
			Employment: TTLPair{FreshTTL: day(30), StaleTTL: day(60)},
			Education:  TTLPair{FreshTTL: day(90), StaleTTL: day(180)},
			Identity:   TTLPair{FreshTTL: day(30), StaleTTL: day(60)},
			Default:    TTLPair{FreshTTL: day(7), StaleTTL: day(30)},
		},
		Budget: BudgetConfig{
			WarningThreshold: 0.8,
			HardLimit:        true,
		},
		Risk: RiskConfig{
			MinValidationConfidence: 0.7,
		},
		Monitoring: MonitoringConfig{
			AlertWindowHours:          24,
			MaxAlertsBeforeEscalation: 3,
			NotificationRetryCount:    3,
			NotificationRetryDelay:    5 * time.Second,
			SchedulerInterval:         15 * time.Minute,
			MaxParallelChecks:         4,
		},
		AI: AIConfig{
			Model: "claude-sonnet-4-20250514",
		},
	}
}

func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional.
	_ = k.Load(file.Provider("configs/config.yaml"), yaml.Parser())

	if err := k.Load(env.Provider("VSC_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "VSC_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
