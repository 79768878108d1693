package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Crawl  CrawlConfig  `yaml:"crawl" mapstructure:"crawl"`
	Scorer ScorerConfig `yaml:"scorer" mapstructure:"scorer"`
	Export ExportConfig `yaml:"export" mapstructure:"export"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CrawlConfig configures the page-turn loop.
type CrawlConfig struct {
	SearchURL              string  `yaml:"search_url" mapstructure:"search_url"`
	MaxPages               int     `yaml:"max_pages" mapstructure:"max_pages"`
	PerPageTimeoutSecs     int     `yaml:"per_page_timeout_secs" mapstructure:"per_page_timeout_secs"`
	FetchRetries           int     `yaml:"fetch_retries" mapstructure:"fetch_retries"`
	FetchRetryDelaySecs    int     `yaml:"fetch_retry_delay_secs" mapstructure:"fetch_retry_delay_secs"`
	MaxConsecutiveFailures int     `yaml:"max_consecutive_failures" mapstructure:"max_consecutive_failures"`
	PageDelayMinMs         int     `yaml:"page_delay_min_ms" mapstructure:"page_delay_min_ms"`
	PageDelayMaxMs         int     `yaml:"page_delay_max_ms" mapstructure:"page_delay_max_ms"`
	BatchPauseEvery        int     `yaml:"batch_pause_every" mapstructure:"batch_pause_every"`
	BatchPauseMinMs        int     `yaml:"batch_pause_min_ms" mapstructure:"batch_pause_min_ms"`
	BatchPauseMaxMs        int     `yaml:"batch_pause_max_ms" mapstructure:"batch_pause_max_ms"`
	RequestsPerSec         float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	UserAgent              string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// ScorerConfig configures the signal scorer.
type ScorerConfig struct {
	Keywords []string `yaml:"keywords" mapstructure:"keywords"`
	MinScore float64  `yaml:"min_score" mapstructure:"min_score"`

	// Weights over the seven sub-scores; must sum to 1.0.
	KeywordPresenceWeight float64 `yaml:"keyword_presence_weight" mapstructure:"keyword_presence_weight"`
	TitleRelevanceWeight  float64 `yaml:"title_relevance_weight" mapstructure:"title_relevance_weight"`
	CompanySizeWeight     float64 `yaml:"company_size_weight" mapstructure:"company_size_weight"`
	ActivityLevelWeight   float64 `yaml:"activity_level_weight" mapstructure:"activity_level_weight"`
	IndustryMatchWeight   float64 `yaml:"industry_match_weight" mapstructure:"industry_match_weight"`
	SkillsMatchWeight     float64 `yaml:"skills_match_weight" mapstructure:"skills_match_weight"`
	ExperienceMatchWeight float64 `yaml:"experience_match_weight" mapstructure:"experience_match_weight"`
}

// ExportConfig configures the file export sink.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the dashboard API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("PROSPECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "prospects.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("export.dir", "exports")
	v.SetDefault("crawl.search_url", "")
	v.SetDefault("crawl.max_pages", 100)
	v.SetDefault("crawl.per_page_timeout_secs", 30)
	v.SetDefault("crawl.fetch_retries", 3)
	v.SetDefault("crawl.fetch_retry_delay_secs", 5)
	v.SetDefault("crawl.max_consecutive_failures", 3)
	v.SetDefault("crawl.page_delay_min_ms", 2000)
	v.SetDefault("crawl.page_delay_max_ms", 4000)
	v.SetDefault("crawl.batch_pause_every", 10)
	v.SetDefault("crawl.batch_pause_min_ms", 20000)
	v.SetDefault("crawl.batch_pause_max_ms", 40000)
	v.SetDefault("crawl.requests_per_sec", 0.5)
	v.SetDefault("crawl.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36")
	v.SetDefault("scorer.keywords", []string{})
	v.SetDefault("scorer.min_score", 50)
	v.SetDefault("scorer.keyword_presence_weight", 0.25)
	v.SetDefault("scorer.title_relevance_weight", 0.20)
	v.SetDefault("scorer.company_size_weight", 0.15)
	v.SetDefault("scorer.activity_level_weight", 0.15)
	v.SetDefault("scorer.industry_match_weight", 0.10)
	v.SetDefault("scorer.skills_match_weight", 0.10)
	v.SetDefault("scorer.experience_match_weight", 0.05)

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

// Validate checks the sections needed by the named command group.
func (c *Config) Validate(section string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres (got %q)", c.Store.Driver))
	}

	if section == "crawl" {
		if c.Crawl.SearchURL == "" {
			errs = append(errs, "crawl.search_url is required")
		}
		if c.Crawl.MaxPages <= 0 {
			errs = append(errs, "crawl.max_pages must be > 0")
		}
		if c.Crawl.MaxConsecutiveFailures <= 0 {
			errs = append(errs, "crawl.max_consecutive_failures must be > 0")
		}
		if c.Crawl.PageDelayMaxMs < c.Crawl.PageDelayMinMs {
			errs = append(errs, "crawl.page_delay_max_ms must be >= crawl.page_delay_min_ms")
		}
		if c.Crawl.BatchPauseMaxMs < c.Crawl.BatchPauseMinMs {
			errs = append(errs, "crawl.batch_pause_max_ms must be >= crawl.batch_pause_min_ms")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
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
