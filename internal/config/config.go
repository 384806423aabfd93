package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Ollama    OllamaConfig    `yaml:"ollama" mapstructure:"ollama"`
	PDFText   PDFTextConfig   `yaml:"pdftext" mapstructure:"pdftext"`
	Security  SecurityConfig  `yaml:"security" mapstructure:"security"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Classify  ClassifyConfig  `yaml:"classify" mapstructure:"classify"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Corpus    CorpusConfig    `yaml:"corpus" mapstructure:"corpus"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend. DatabaseURL is the DSN for
// either driver: a file path for sqlite, a connection URL for postgres.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// LLMConfig selects and tunes the LLM backend shared by notice analysis
// and document classification.
type LLMConfig struct {
	Backend     string        `yaml:"backend" mapstructure:"backend"` // "anthropic", "ollama", "none"
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Retry       RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Breaker     BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
}

// RetryConfig tunes retry behavior for LLM calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// BreakerConfig tunes the circuit breaker protecting LLM calls.
type BreakerConfig struct {
	FailureRatio     float64 `yaml:"failure_ratio" mapstructure:"failure_ratio"`
	MinRequests      uint32  `yaml:"min_requests" mapstructure:"min_requests"`
	OpenTimeoutSecs  int     `yaml:"open_timeout_secs" mapstructure:"open_timeout_secs"`
	HalfOpenMaxCalls uint32  `yaml:"half_open_max_calls" mapstructure:"half_open_max_calls"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key                 string `yaml:"key" mapstructure:"key"`
	ClassifyModel       string `yaml:"classify_model" mapstructure:"classify_model"`
	ExtractModel        string `yaml:"extract_model" mapstructure:"extract_model"`
	MaxBatchSize        int    `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	NoBatch             bool   `yaml:"no_batch" mapstructure:"no_batch"`
	SmallBatchThreshold int    `yaml:"small_batch_threshold" mapstructure:"small_batch_threshold"`
}

// OllamaConfig holds local Ollama server settings.
type OllamaConfig struct {
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	Model   string  `yaml:"model" mapstructure:"model"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
}

// PDFTextConfig configures PDF text extraction.
type PDFTextConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// SecurityConfig configures file validation.
type SecurityConfig struct {
	MaxFileSizeMB int      `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb"`
	AllowedDirs   []string `yaml:"allowed_dirs" mapstructure:"allowed_dirs"`
}

// ExtractConfig configures requirement extraction from notices.
type ExtractConfig struct {
	MaxTextChars int `yaml:"max_text_chars" mapstructure:"max_text_chars"`
}

// ClassifyConfig configures document classification.
type ClassifyConfig struct {
	ContentChars  int `yaml:"content_chars" mapstructure:"content_chars"`
	Workers       int `yaml:"workers" mapstructure:"workers"`
	MaxBatchFiles int `yaml:"max_batch_files" mapstructure:"max_batch_files"`
}

// MatchConfig configures requirement-to-document matching.
type MatchConfig struct {
	Threshold         float64 `yaml:"threshold" mapstructure:"threshold"`
	WarnConfidence    float64 `yaml:"warn_confidence" mapstructure:"warn_confidence"`
	ExpiryWarningDays int     `yaml:"expiry_warning_days" mapstructure:"expiry_warning_days"`
	MaxIssuanceDays   int     `yaml:"max_issuance_days" mapstructure:"max_issuance_days"`
}

// CorpusConfig configures the few-shot example corpus. An empty path uses
// the builtin examples.
type CorpusConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
	TopK int    `yaml:"top_k" mapstructure:"top_k"`
}

// OutputConfig configures report output.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("LICITA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "licitaflow.db")
	v.SetDefault("store.cache_ttl_hours", 720)
	v.SetDefault("llm.backend", "anthropic")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.retry.max_attempts", 3)
	v.SetDefault("llm.retry.initial_backoff_ms", 500)
	v.SetDefault("llm.retry.max_backoff_ms", 30000)
	v.SetDefault("llm.retry.multiplier", 2.0)
	v.SetDefault("llm.retry.jitter_fraction", 0.25)
	v.SetDefault("llm.breaker.failure_ratio", 0.6)
	v.SetDefault("llm.breaker.min_requests", 5)
	v.SetDefault("llm.breaker.open_timeout_secs", 30)
	v.SetDefault("llm.breaker.half_open_max_calls", 2)
	v.SetDefault("anthropic.classify_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.extract_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_batch_size", 100)
	v.SetDefault("anthropic.small_batch_threshold", 3)
	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama3.1")
	v.SetDefault("ollama.rps", 1.0)
	v.SetDefault("pdftext.provider", "auto")
	v.SetDefault("pdftext.pdftotext_path", "pdftotext")
	v.SetDefault("security.max_file_size_mb", 50)
	v.SetDefault("extract.max_text_chars", 15000)
	v.SetDefault("classify.content_chars", 2000)
	v.SetDefault("classify.workers", 4)
	v.SetDefault("classify.max_batch_files", 50)
	v.SetDefault("match.threshold", 0.5)
	v.SetDefault("match.warn_confidence", 0.7)
	v.SetDefault("match.expiry_warning_days", 30)
	v.SetDefault("match.max_issuance_days", 90)
	v.SetDefault("corpus.top_k", 3)
	v.SetDefault("output.dir", "output")
	v.SetDefault("server.port", 8080)
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

// Validate checks the configuration for the given mode ("analyze",
// "classify", "extract", "serve") and returns all problems at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "analyze", "classify", "extract":
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.LLM.Backend {
	case "anthropic":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required when llm.backend is anthropic")
		}
	case "ollama", "none":
	default:
		problems = append(problems, "llm.backend must be one of: anthropic, ollama, none")
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		problems = append(problems, "llm.temperature must be between 0 and 2")
	}
	if c.Match.Threshold < 0 || c.Match.Threshold > 1 {
		problems = append(problems, "match.threshold must be between 0 and 1")
	}
	if c.Match.WarnConfidence < 0 || c.Match.WarnConfidence > 1 {
		problems = append(problems, "match.warn_confidence must be between 0 and 1")
	}
	if c.Classify.Workers < 1 || c.Classify.Workers > 32 {
		problems = append(problems, "classify.workers must be between 1 and 32")
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for the postgres driver")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
