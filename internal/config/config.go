package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	TelegramToken string  `env:"TELEGRAM_TOKEN"`
	AllowedUsers  []int64 `env:"ALLOWED_USERS"`
	HTTPEnabled   bool    `env:"HTTP_ENABLED"   envDefault:"true"`
	HTTPAddr      string  `env:"HTTP_ADDR"      envDefault:":8080"`

	SummarizerProvider string `env:"SUMMARIZER_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey       string `env:"OPENAI_API_KEY"`
	OpenAIModel        string `env:"OPENAI_MODEL"`
	OpenAIBaseURL      string `env:"OPENAI_BASE_URL"`
	OpenAIServiceTier  string `env:"OPENAI_SERVICE_TIER" envDefault:"flex"`
	AnthropicAPIKey    string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel     string `env:"ANTHROPIC_MODEL"`
	AnthropicBaseURL   string `env:"ANTHROPIC_BASE_URL"`

	TokenizerEncoding    string        `env:"TOKENIZER_ENCODING"      envDefault:"cl100k_base"`
	ChunkMaxTokens       int           `env:"CHUNK_MAX_TOKENS"        envDefault:"1024"`
	ChunkOverlapTokens   int           `env:"CHUNK_OVERLAP_TOKENS"    envDefault:"100"`
	ModelMaxOutputTokens int           `env:"MODEL_MAX_OUTPUT_TOKENS" envDefault:"1024"`
	SummaryParallelism   int           `env:"SUMMARY_PARALLELISM"     envDefault:"4"`
	RequestTimeout       time.Duration `env:"REQUEST_TIMEOUT"         envDefault:"3m"`

	DBPath           string        `env:"DB_PATH"           envDefault:"db.sqlite"`
	HistoryRetention time.Duration `env:"HISTORY_RETENTION" envDefault:"720h"`

	CacheRedisAddr     string        `env:"CACHE_REDIS_ADDR"`
	CacheRedisPassword string        `env:"CACHE_REDIS_PASSWORD"`
	CacheRedisDB       int           `env:"CACHE_REDIS_DB"`
	CacheTTL           time.Duration `env:"CACHE_TTL"          envDefault:"24h"`
	CacheMaxEntries    int           `env:"CACHE_MAX_ENTRIES"  envDefault:"1024"`

	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	LogLevel       string `env:"LOG_LEVEL"       envDefault:"info"`
	LogFormat      string `env:"LOG_FORMAT"      envDefault:"json"`
	TracingEnabled bool   `env:"TRACING_ENABLED"`
}

func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}

	if err = cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.TelegramToken == "" && !c.HTTPEnabled {
		return errors.New("TELEGRAM_TOKEN must be set when HTTP_ENABLED is false")
	}

	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}

	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}

	return nil
}
