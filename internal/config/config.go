package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/pipeline-import/internal/match"
	"github.com/sells-group/pipeline-import/internal/model"
	"github.com/sells-group/pipeline-import/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Match     match.Thresholds `yaml:"match" mapstructure:"match"`
	Import    ImportConfig     `yaml:"import" mapstructure:"import"`
	Server    ServerConfig     `yaml:"server" mapstructure:"server"`
	Log       LogConfig        `yaml:"log" mapstructure:"log"`
	OCR       OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds settings for the report extraction model.
type AnthropicConfig struct {
	Key               string                 `yaml:"key" mapstructure:"key"`
	BaseURL           string                 `yaml:"base_url" mapstructure:"base_url"`
	Model             string                 `yaml:"model" mapstructure:"model"`
	MaxTokens         int64                  `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerMinute int                    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	CacheTTL          string                 `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	Retry             resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// ImportConfig configures import execution.
type ImportConfig struct {
	// DefaultVertical is assigned to clients created from a report, which
	// carries no vertical.
	DefaultVertical string              `yaml:"default_vertical" mapstructure:"default_vertical"`
	Defaults        model.ImportOptions `yaml:"defaults" mapstructure:"defaults"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	CORSOrigins         []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
	MaxBodyBytes        int64    `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// OCRConfig configures PDF text extraction for CLI inputs.
type OCRConfig struct {
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PIPELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)

	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.requests_per_minute", 30)
	v.SetDefault("anthropic.cache_ttl", "5m")
	v.SetDefault("anthropic.retry.max_attempts", 3)
	v.SetDefault("anthropic.retry.initial_backoff", "500ms")
	v.SetDefault("anthropic.retry.max_backoff", "10s")
	v.SetDefault("anthropic.retry.multiplier", 2.0)
	v.SetDefault("anthropic.retry.jitter_fraction", 0.25)

	th := match.DefaultThresholds()
	v.SetDefault("match.exact_score", th.ExactScore)
	v.SetDefault("match.base_name_score", th.BaseNameScore)
	v.SetDefault("match.min_base_name_length", th.MinBaseNameLength)
	v.SetDefault("match.containment_weight", th.ContainmentWeight)
	v.SetDefault("match.min_containment_score", th.MinContainmentScore)
	v.SetDefault("match.min_similarity", th.MinSimilarity)
	v.SetDefault("match.fuzzy_weight", th.FuzzyWeight)
	v.SetDefault("match.max_matches", th.MaxMatches)
	v.SetDefault("match.use_match_score", th.UseMatchScore)
	v.SetDefault("match.review_below_score", th.ReviewBelowScore)

	opts := model.DefaultImportOptions()
	v.SetDefault("import.default_vertical", "Unassigned")
	v.SetDefault("import.defaults.create_new_clients", opts.CreateNewClients)
	v.SetDefault("import.defaults.update_existing", opts.UpdateExisting)
	v.SetDefault("import.defaults.create_tasks", opts.CreateTasks)
	v.SetDefault("import.defaults.dry_run", opts.DryRun)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout_secs", 15)
	v.SetDefault("server.max_body_bytes", 25<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.timeout_secs", 60)
}

// Validate checks the settings a command mode depends on. Modes: "serve",
// "import", "parse", "store". All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve", "import", "parse", "store":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported (want postgres or sqlite)", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server.port must be > 0 and <= 65535, got %d", c.Server.Port))
	}

	th := c.Match
	if th.MinSimilarity <= 0 || th.MinSimilarity > 1 {
		errs = append(errs, fmt.Sprintf("match.min_similarity must be in (0, 1], got %v", th.MinSimilarity))
	}
	if th.MaxMatches <= 0 {
		errs = append(errs, fmt.Sprintf("match.max_matches must be > 0, got %d", th.MaxMatches))
	}
	if th.UseMatchScore > th.ExactScore || th.ReviewBelowScore > th.UseMatchScore {
		errs = append(errs, "match scores must satisfy review_below_score <= use_match_score <= exact_score")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
