package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Market    MarketConfig    `yaml:"market"`
	Engine    EngineConfig    `yaml:"engine"`
	Redis     RedisConfig     `yaml:"redis"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	HTTP      HTTPConfig      `yaml:"http"`
	Notify    NotifyConfig    `yaml:"notify"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Assistant AssistantConfig `yaml:"assistant"`
	Wallet    WalletConfig    `yaml:"wallet"`
	Vault     VaultConfig     `yaml:"vault"`
	Log       LogConfig       `yaml:"log"`
}

// MarketConfig selects the candle feed.
type MarketConfig struct {
	Symbol            string        `yaml:"symbol" default:"SOLUSDT" validate:"required"`
	Interval          string        `yaml:"interval" default:"1h" validate:"oneof=1m 3m 5m 15m 30m 1h 2h 4h 6h 8h 12h 1d 3d 1w"`
	Limit             int           `yaml:"limit" default:"1000" validate:"min=200,max=1000"`
	BaseURL           string        `yaml:"base_url" default:"https://api.binance.us" validate:"required,url"`
	RequestsPerSecond float64       `yaml:"requests_per_second" default:"5" validate:"gt=0"`
	Timeout           time.Duration `yaml:"timeout" default:"10s"`
}

// EngineConfig drives the refresh loop.
type EngineConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval" default:"5m" validate:"min=1s"`
	NotifyTimeout   time.Duration `yaml:"notify_timeout" default:"10s"`
	SignalCount     int           `yaml:"signal_count" default:"3" validate:"min=0"`
}

// RedisConfig holds the verdict store connection.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" default:"true"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SQLiteConfig holds the candle cache location.
type SQLiteConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"data/candles.db"`
}

// HTTPConfig holds the dashboard API listener.
type HTTPConfig struct {
	Addr           string   `yaml:"addr" default:":8080" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins" default:"[\"*\"]"`
	Mode           string   `yaml:"mode" default:"release" validate:"oneof=debug release test"`
}

// NotifyConfig selects alert channels. Bot tokens come from secrets.
type NotifyConfig struct {
	TelegramChatID string `yaml:"telegram_chat_id"`
	TelegramSecret string `yaml:"telegram_secret" default:"TELEGRAM_BOT_TOKEN"`
	WebhookURL     string `yaml:"webhook_url" validate:"omitempty,url"`
}

// KafkaConfig enables publishing alerts to a topic when Brokers is set.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic" default:"trend-alerts"`
}

// AssistantConfig points at an OpenAI-compatible chat completions endpoint.
type AssistantConfig struct {
	BaseURL      string        `yaml:"base_url" default:"https://api.openai.com/v1" validate:"required,url"`
	Model        string        `yaml:"model" default:"gpt-4o-mini" validate:"required"`
	Timeout      time.Duration `yaml:"timeout" default:"30s"`
	APIKeySecret string        `yaml:"api_key_secret" default:"OPENAI_API_KEY"`
}

// WalletConfig drives the wallet monitor.
type WalletConfig struct {
	Address      string        `yaml:"address"`
	Mode         string        `yaml:"mode" default:"poll" validate:"oneof=poll stream"`
	APIBase      string        `yaml:"api_base" default:"https://api.helius.xyz" validate:"required,url"`
	StreamURL    string        `yaml:"stream_url" default:"wss://rpc.helius.xyz"`
	PollInterval time.Duration `yaml:"poll_interval" default:"10s"`
	ErrorBackoff time.Duration `yaml:"error_backoff" default:"15s"`
	Capacity     int           `yaml:"capacity" default:"500" validate:"min=1"`
	APIKeySecret string        `yaml:"api_key_secret" default:"HELIUS_API_KEY"`
}

// VaultConfig enables reading secrets from a Vault KV v2 mount.
// The token is taken from VAULT_TOKEN by the Vault client.
type VaultConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Address  string        `yaml:"address" default:"http://127.0.0.1:8200"`
	Mount    string        `yaml:"mount" default:"secret"`
	Path     string        `yaml:"path" default:"soltrend"`
	CacheTTL time.Duration `yaml:"cache_ttl" default:"10m"`
}

// LogConfig sets the log level and format.
type LogConfig struct {
	Level   string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Console bool   `yaml:"console"`
}

var validate = validator.New()

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and the environment, in increasing precedence.
func Load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() error {
	c.Market.Symbol = getEnv("SYMBOL", c.Market.Symbol)
	c.Market.Interval = getEnv("INTERVAL", c.Market.Interval)
	c.Market.BaseURL = getEnv("BINANCE_BASE_URL", c.Market.BaseURL)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.SQLite.Path = getEnv("SQLITE_PATH", c.SQLite.Path)
	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)
	c.Notify.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", c.Notify.TelegramChatID)
	c.Notify.WebhookURL = getEnv("WEBHOOK_URL", c.Notify.WebhookURL)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
	c.Assistant.BaseURL = getEnv("ASSISTANT_BASE_URL", c.Assistant.BaseURL)
	c.Assistant.Model = getEnv("ASSISTANT_MODEL", c.Assistant.Model)
	c.Wallet.Address = getEnv("WALLET_ADDRESS", c.Wallet.Address)
	c.Wallet.Mode = getEnv("WALLET_MODE", c.Wallet.Mode)
	c.Vault.Address = getEnv("VAULT_ADDR", c.Vault.Address)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.HTTP.AllowedOrigins = splitList(v)
	}

	var err error
	if c.Market.Limit, err = getEnvInt("CANDLE_LIMIT", c.Market.Limit); err != nil {
		return err
	}
	if c.Engine.RefreshInterval, err = getEnvDuration("REFRESH_INTERVAL", c.Engine.RefreshInterval); err != nil {
		return err
	}
	if c.Redis.Enabled, err = getEnvBool("REDIS_ENABLED", c.Redis.Enabled); err != nil {
		return err
	}
	if c.Vault.Enabled, err = getEnvBool("VAULT_ENABLED", c.Vault.Enabled); err != nil {
		return err
	}
	return nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("env %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("env %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("env %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
