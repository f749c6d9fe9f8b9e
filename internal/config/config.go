package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	PeopleSearch PeopleSearchConfig `yaml:"peoplesearch" mapstructure:"peoplesearch"`
	PhoneIntel   PhoneIntelConfig   `yaml:"phoneintel" mapstructure:"phoneintel"`
	DNC          DNCConfig          `yaml:"dnc" mapstructure:"dnc"`
	Demographic  DemographicConfig  `yaml:"demographic" mapstructure:"demographic"`
	Throttle     ThrottleConfig     `yaml:"throttle" mapstructure:"throttle"`
	Policy       PolicyConfig       `yaml:"policy" mapstructure:"policy"`
	Batch        BatchConfig        `yaml:"batch" mapstructure:"batch"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PeopleSearchConfig holds people-search provider settings.
type PeopleSearchConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PhoneIntelConfig holds phone-intelligence provider settings.
type PhoneIntelConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// DNCConfig holds do-not-call provider settings. ClientID and RefreshToken
// are the long-lived credential exchanged for short-lived bearer tokens.
type DNCConfig struct {
	ClientID         string `yaml:"client_id" mapstructure:"client_id"`
	RefreshToken     string `yaml:"refresh_token" mapstructure:"refresh_token"`
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	TokenBaseURL     string `yaml:"token_base_url" mapstructure:"token_base_url"`
	SafetyMarginSecs int    `yaml:"safety_margin_secs" mapstructure:"safety_margin_secs"`
}

// DemographicConfig holds age/demographic provider settings.
type DemographicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ThrottleConfig holds per-provider minimum inter-call delays. The
// defaults were discovered empirically against these providers; they are
// starting values, adjustable here without a code change.
type ThrottleConfig struct {
	DefaultDelayMS int            `yaml:"default_delay_ms" mapstructure:"default_delay_ms"`
	ProviderMS     map[string]int `yaml:"provider_ms" mapstructure:"provider_ms"`
}

// Delays converts the configured delays to durations keyed by provider.
func (t ThrottleConfig) Delays() map[string]time.Duration {
	out := make(map[string]time.Duration, len(t.ProviderMS))
	for k, ms := range t.ProviderMS {
		out[k] = time.Duration(ms) * time.Millisecond
	}
	return out
}

// DefaultDelay returns the fallback spacing for unconfigured providers.
func (t ThrottleConfig) DefaultDelay() time.Duration {
	return time.Duration(t.DefaultDelayMS) * time.Millisecond
}

// PolicyConfig extends the gatekeep carrier denylist.
type PolicyConfig struct {
	ExtraDisposableCarriers []string `yaml:"extra_disposable_carriers" mapstructure:"extra_disposable_carriers"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	FlushEvery int `yaml:"flush_every" mapstructure:"flush_every"`
	Limit      int `yaml:"limit" mapstructure:"limit"`
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
	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "enrich.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("batch.flush_every", 5)
	v.SetDefault("batch.limit", 0)
	v.SetDefault("peoplesearch.base_url", "https://api.peoplesearch.io/v2")
	v.SetDefault("phoneintel.base_url", "https://api.phoneintel.com/v1")
	v.SetDefault("dnc.base_url", "https://api.dncregistry.net/v1")
	v.SetDefault("dnc.safety_margin_secs", 60)
	v.SetDefault("demographic.base_url", "https://api.demodata.io/v1")
	v.SetDefault("throttle.default_delay_ms", 500)
	v.SetDefault("throttle.provider_ms", map[string]int{
		"peoplesearch": 1200,
		"phoneintel":   600,
		"dnc":          2000,
		"demographic":  1500,
	})

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
