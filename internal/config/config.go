package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"
	StoreBackendMemory   = "memory"
)

var (
	ErrNoCredentials   = errors.New("no gemini api keys configured")
	ErrMissingDatabase = errors.New("datastore is not configured")
)

type Config struct {
	AppEnv         string        `env:"APP_ENV" envDefault:"dev"`
	ServiceName    string        `env:"SERVICE_NAME" envDefault:"chatrelay"`
	HTTPAddr       string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"30s"`
	ShutdownGrace  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	CORSAllowOrigins string `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin  int    `env:"RATE_LIMIT_PER_MIN" envDefault:"60"`

	PromptsPath  string `env:"PROMPTS_PATH" envDefault:"prompts.json"`
	PromptBudget int    `env:"PROMPT_TOKEN_BUDGET" envDefault:"3000"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	Gemini GeminiConfig
	Store  StoreConfig
}

// GeminiConfig описывает upstream и набор ключей.
// Ключи собираются из GEMINI_API_KEYS и из старых переменных GEMINI_API_KEY, GEMINI_API_KEY_2..4.
type GeminiConfig struct {
	APIKeys []string `env:"GEMINI_API_KEYS" envSeparator:","`
	APIKey  string   `env:"GEMINI_API_KEY"`
	APIKey2 string   `env:"GEMINI_API_KEY_2"`
	APIKey3 string   `env:"GEMINI_API_KEY_3"`
	APIKey4 string   `env:"GEMINI_API_KEY_4"`
	BaseURL string   `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`
	Model   string   `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
}

type StoreConfig struct {
	Backend     string        `env:"STORE_BACKEND" envDefault:"postgres"`
	DatabaseURL string        `env:"DATABASE_URL"`
	RedisURL    string        `env:"REDIS_URL"`
	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"0s"`
	ConnectWait time.Duration `env:"STORE_CONNECT_TIMEOUT" envDefault:"30s"`
}

// Load читает конфигурацию из переменных окружения.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-1.5-flash"
	}
	return cfg, nil
}

// Credentials возвращает ключи в порядке ротации: сначала список, затем одиночные переменные.
// Пустые значения и повторы отбрасываются.
func (g GeminiConfig) Credentials() []string {
	candidates := make([]string, 0, len(g.APIKeys)+4)
	candidates = append(candidates, g.APIKeys...)
	candidates = append(candidates, g.APIKey, g.APIKey2, g.APIKey3, g.APIKey4)

	out := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, key := range candidates {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// Validate проверяет то, без чего отправка сообщения невозможна.
// Возвращает все найденные проблемы сразу.
func (c Config) Validate() error {
	var errs []error
	if err := c.Store.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Gemini.Credentials()) == 0 {
		errs = append(errs, ErrNoCredentials)
	}
	return errors.Join(errs...)
}

func (s StoreConfig) Validate() error {
	switch s.Backend {
	case StoreBackendMemory:
		return nil
	case StoreBackendPostgres:
		if strings.TrimSpace(s.DatabaseURL) == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for %s", ErrMissingDatabase, s.Backend)
		}
		return nil
	case StoreBackendRedis:
		if strings.TrimSpace(s.RedisURL) == "" {
			return fmt.Errorf("%w: REDIS_URL is required for %s", ErrMissingDatabase, s.Backend)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown STORE_BACKEND %q", ErrMissingDatabase, s.Backend)
	}
}

func (c Config) IsProd() bool { return strings.EqualFold(c.AppEnv, "prod") }

// EnvReport показывает, какие параметры заданы, без раскрытия значений.
type EnvReport struct {
	Values            map[string]string `json:"environment"`
	CredentialCount   int               `json:"credentialCount"`
	DatastoreBackend  string            `json:"datastoreBackend"`
	DatastoreReady    bool              `json:"datastoreConfigured"`
	ConfigurationErrs []string          `json:"configurationErrors,omitempty"`
}

func (c Config) Report() EnvReport {
	report := EnvReport{
		Values: map[string]string{
			"DATABASE_URL":     presence(c.Store.DatabaseURL),
			"REDIS_URL":        presence(c.Store.RedisURL),
			"GEMINI_API_KEY":   presence(c.Gemini.APIKey),
			"GEMINI_API_KEY_2": presence(c.Gemini.APIKey2),
			"GEMINI_API_KEY_3": presence(c.Gemini.APIKey3),
			"GEMINI_API_KEY_4": presence(c.Gemini.APIKey4),
			"GEMINI_API_KEYS":  presence(strings.Join(c.Gemini.APIKeys, "")),
			"GEMINI_MODEL":     c.Gemini.Model,
			"APP_ENV":          c.AppEnv,
		},
		CredentialCount:  len(c.Gemini.Credentials()),
		DatastoreBackend: c.Store.Backend,
		DatastoreReady:   c.Store.Validate() == nil,
	}
	if err := c.Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			report.ConfigurationErrs = append(report.ConfigurationErrs, line)
		}
	}
	return report
}

func presence(v string) string {
	if strings.TrimSpace(v) == "" {
		return "Missing"
	}
	return "Set"
}
