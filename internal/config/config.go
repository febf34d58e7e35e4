// Package config loads application configuration from file and
// environment and initializes the global logger.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/podreach/leadpipe/internal/enrich"
	"github.com/podreach/leadpipe/internal/vetting"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Enrich    enrich.Config   `yaml:"enrich" mapstructure:"enrich"`
	Vetting   vetting.Config  `yaml:"vetting" mapstructure:"vetting"`
	Criteria  CriteriaConfig  `yaml:"criteria" mapstructure:"criteria"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// CriteriaConfig points at the vetting criteria file.
type CriteriaConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// ServerConfig configures the review API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// ExportConfig configures lead export output.
type ExportConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
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
	v.SetEnvPrefix("LEADPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "leadpipe.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("export.format", "csv")
	v.SetDefault("export.output", "leads.csv")
	v.SetDefault("criteria.file", "criteria.yaml")
	v.SetDefault("enrich.workers", 4)
	v.SetDefault("enrich.call_timeout", "20s")
	v.SetDefault("enrich.rate_per_second", 2.0)

	def := vetting.DefaultConfig()
	v.SetDefault("vetting.episode_count_weight", def.EpisodeCountWeight)
	v.SetDefault("vetting.recency_weight", def.RecencyWeight)
	v.SetDefault("vetting.consistency_weight", def.ConsistencyWeight)
	v.SetDefault("vetting.llm_match_weight", def.LLMMatchWeight)
	v.SetDefault("vetting.tier_a_threshold", def.TierAThreshold)
	v.SetDefault("vetting.tier_b_threshold", def.TierBThreshold)
	v.SetDefault("vetting.tier_c_threshold", def.TierCThreshold)
	v.SetDefault("vetting.min_episode_count", def.MinEpisodeCount)
	v.SetDefault("vetting.max_days_since_last", def.MaxDaysSinceLast)
	v.SetDefault("vetting.min_episodes_for_cadence", def.MinEpisodesForCadence)
	v.SetDefault("vetting.recency_threshold_days", def.RecencyThresholdDays)
	v.SetDefault("vetting.model", def.Model)
	v.SetDefault("vetting.max_tokens", def.MaxTokens)
	v.SetDefault("vetting.workers", def.Workers)

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

// Validate checks that the fields required for the given mode are set.
// Modes: discover, enrich, vet, serve, export, prefs.
func (c *Config) Validate(mode string) error {
	var missing []string

	requireStore := func() {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.Path == "" {
				missing = append(missing, "store.path is required for the sqlite driver")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				missing = append(missing, "store.database_url is required for the postgres driver")
			}
		default:
			missing = append(missing, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
		}
	}

	switch mode {
	case "discover", "prefs":
		requireStore()
	case "enrich":
		requireStore()
		if c.Enrich.Workers < 1 || c.Enrich.Workers > 32 {
			missing = append(missing, "enrich.workers must be between 1 and 32")
		}
	case "vet":
		requireStore()
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key is required")
		}
		if c.Criteria.File == "" {
			missing = append(missing, "criteria.file is required")
		}
		if err := vetting.ValidateConfig(c.Vetting); err != nil {
			missing = append(missing, err.Error())
		}
	case "serve":
		requireStore()
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	case "export":
		requireStore()
		if c.Export.Format != "csv" && c.Export.Format != "xlsx" {
			missing = append(missing, fmt.Sprintf("export.format must be csv or xlsx, got %q", c.Export.Format))
		}
		if c.Export.Output == "" {
			missing = append(missing, "export.output is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(missing, "; "))
	}
	return nil
}

// LoadCriteria reads a vetting criteria file.
func LoadCriteria(path string) (vetting.Criteria, error) {
	var crit vetting.Criteria

	raw, err := os.ReadFile(path)
	if err != nil {
		return crit, eris.Wrapf(err, "config: read criteria file %s", path)
	}
	if err := yaml.Unmarshal(raw, &crit); err != nil {
		return crit, eris.Wrapf(err, "config: parse criteria file %s", path)
	}
	if crit.IdealDescription == "" {
		return crit, eris.Errorf("config: criteria file %s has no ideal_description", path)
	}
	return crit, nil
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
