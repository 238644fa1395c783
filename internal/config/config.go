package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"

	configPathEnv      = "PULSEWATCH_CONFIG"
	databaseDriverEnv  = "DATABASE_DRIVER"
	databaseDSNEnv     = "DATABASE_DSN"
	openAIAPIKeyEnv    = "OPENAI_API_KEY"
	openAIModelEnv     = "OPENAI_MODEL"
	cohereAPIKeyEnv    = "COHERE_API_KEY"
	providerEnv        = "CLASSIFIER_PROVIDER"
	redisAddrEnv       = "REDIS_ADDR"
	redisPasswordEnv   = "REDIS_PASSWORD"
	kafkaBrokersEnv    = "KAFKA_BROKERS"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
	logLevelEnv        = "LOG_LEVEL"
	httpAddrEnv        = "HTTP_ADDR"
	defaultEnvFileName = ".env"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	HTTP          HTTPConfig         `yaml:"http"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Classifier    ClassifierConfig   `yaml:"classifier"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	ML            MLConfig           `yaml:"ml"`
	Cohere        CohereConfig       `yaml:"cohere"`
	Analysis      AnalysisConfig     `yaml:"analysis"`
	Ingestion     IngestionConfig    `yaml:"ingestion"`
	RateLimit     RateLimitConfig    `yaml:"rateLimit"`
	Redis         RedisConfig        `yaml:"redis"`
	Kafka         KafkaConfig        `yaml:"kafka"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig selects verbosity and output format (text, json or auto).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
}

// DatabaseConfig describes the record store connection.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines when recurring jobs run. Empty expressions disable a job.
type SchedulerConfig struct {
	AnalysisCron string         `yaml:"analysisCron"`
	CleanupCron  string         `yaml:"cleanupCron"`
	Timezone     string         `yaml:"timezone"`
	location     *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// ClassifierConfig picks the provider and its retry budget.
type ClassifierConfig struct {
	Provider   string        `yaml:"provider"`
	MaxRetries int           `yaml:"maxRetries"`
	BaseDelay  time.Duration `yaml:"baseDelay"`
}

// ChatGPTConfig defines how to contact the chat completions API.
type ChatGPTConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"apiKey"`
	SystemPrompt string        `yaml:"systemPrompt"`
	Temperature  float64       `yaml:"temperature"`
	MaxTokens    int           `yaml:"maxTokens"`
	Timeout      time.Duration `yaml:"timeout"`
}

// MLConfig describes the self-hosted inference service.
type MLConfig struct {
	InferenceURL string        `yaml:"inferenceUrl"`
	APIKey       string        `yaml:"apiKey"`
	Timeout      time.Duration `yaml:"timeout"`
}

// CohereConfig configures the Cohere chat classifier.
type CohereConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// AnalysisConfig tunes analysis runs.
type AnalysisConfig struct {
	BatchSize         int           `yaml:"batchSize"`
	ItemDelay         time.Duration `yaml:"itemDelay"`
	ProgressRetention time.Duration `yaml:"progressRetention"`
}

// IngestionConfig tunes candidate ingestion.
type IngestionConfig struct {
	MinContentLength int `yaml:"minContentLength"`
	BatchSize        int `yaml:"batchSize"`
}

// RateLimitConfig selects the limiter backend (memory or redis).
type RateLimitConfig struct {
	Backend       string        `yaml:"backend"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// RedisConfig points at the shared limiter store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// KafkaConfig enables the candidate consumer when brokers are set.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"groupId"`
}

// Enabled reports whether a consumer should be started.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIBase  string `yaml:"apiBase"`
}

// Enabled reports whether digests can be delivered.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Load reads .env, then YAML configuration (if present), then applies environment
// overrides. An explicit path wins over PULSEWATCH_CONFIG.
func Load(path string) (Config, error) {
	if err := godotenv.Load(defaultEnvFileName); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load %s: %v", defaultEnvFileName, err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{databaseDriverEnv, &c.Database.Driver},
		{databaseDSNEnv, &c.Database.DSN},
		{openAIAPIKeyEnv, &c.ChatGPT.APIKey},
		{openAIModelEnv, &c.ChatGPT.Model},
		{cohereAPIKeyEnv, &c.Cohere.APIKey},
		{providerEnv, &c.Classifier.Provider},
		{redisAddrEnv, &c.Redis.Addr},
		{redisPasswordEnv, &c.Redis.Password},
		{telegramTokenEnv, &c.Notifications.Telegram.BotToken},
		{telegramChatIDEnv, &c.Notifications.Telegram.ChatID},
		{logLevelEnv, &c.Logging.Level},
		{httpAddrEnv, &c.HTTP.Addr},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.target = v
		}
	}

	if v := os.Getenv(kafkaBrokersEnv); v != "" {
		var brokers []string
		for _, broker := range strings.Split(v, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				brokers = append(brokers, broker)
			}
		}
		c.Kafka.Brokers = brokers
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}

	switch c.Classifier.Provider {
	case "chatgpt", "ml", "cohere":
	default:
		errs = append(errs, fmt.Errorf("classifier.provider must be chatgpt, ml or cohere, got %q", c.Classifier.Provider))
	}
	if c.Classifier.MaxRetries < 1 {
		errs = append(errs, errors.New("classifier.maxRetries must be at least 1"))
	}

	if c.Analysis.BatchSize < 1 || c.Analysis.BatchSize > 50 {
		errs = append(errs, errors.New("analysis.batchSize must be between 1 and 50"))
	}
	if c.Analysis.ItemDelay < 0 {
		errs = append(errs, errors.New("analysis.itemDelay must not be negative"))
	}

	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis rate limit backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("rateLimit.backend must be memory or redis, got %q", c.RateLimit.Backend))
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}

	return errors.Join(errs...)
}

// String renders a redacted summary for startup logs.
func (c Config) String() string {
	return "driver=" + c.Database.Driver +
		" provider=" + c.Classifier.Provider +
		" http=" + c.HTTP.Addr +
		" ratelimit=" + c.RateLimit.Backend +
		" kafka=" + strconv.FormatBool(c.Kafka.Enabled()) +
		" telegram=" + strconv.FormatBool(c.Notifications.Telegram.Enabled())
}

// Default returns a configuration that runs locally against SQLite.
func Default() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "auto"},
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "pulsewatch.db"},
		Scheduler: SchedulerConfig{
			AnalysisCron: "*/30 * * * *",
			CleanupCron:  "0 3 * * *",
			Timezone:     defaultTimezone,
			location:     tz,
		},
		Classifier: ClassifierConfig{Provider: "chatgpt", MaxRetries: 3, BaseDelay: time.Second},
		ChatGPT: ChatGPTConfig{
			Endpoint:    "https://api.openai.com/v1/chat/completions",
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
			MaxTokens:   500,
			Timeout:     30 * time.Second,
		},
		ML:     MLConfig{InferenceURL: "http://localhost:9000", Timeout: 15 * time.Second},
		Cohere: CohereConfig{Model: "command-r"},
		Analysis: AnalysisConfig{
			BatchSize:         20,
			ItemDelay:         500 * time.Millisecond,
			ProgressRetention: 30 * time.Second,
		},
		Ingestion: IngestionConfig{MinContentLength: 20, BatchSize: 50},
		RateLimit: RateLimitConfig{Backend: "memory", SweepInterval: 10 * time.Minute},
		Redis:     RedisConfig{KeyPrefix: "pulsewatch:ratelimit"},
		Kafka:     KafkaConfig{Topic: "pulsewatch.candidates", GroupID: "pulsewatch-ingest"},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{APIBase: "https://api.telegram.org"},
		},
	}
}
