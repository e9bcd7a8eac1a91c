package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	xutil "MorningBrief/pkg/util"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8000"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
		// Digest publishes deduplicated warn/error lines to Kafka.
		Digest struct {
			Enabled       bool          `yaml:"enabled"`
			Topic         string        `yaml:"topic" default:"morning-brief.logs"`
			FlushInterval time.Duration `yaml:"flush_interval" default:"30s"`
			Threshold     int           `yaml:"threshold" default:"100"`
		} `yaml:"digest"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Provider ProviderConfig `yaml:"provider"`
	Brief struct {
		Symbols  []string `yaml:"symbols"`
		Keywords []string `yaml:"keywords"`
		Timezone string   `yaml:"timezone" default:"Asia/Seoul"`
	} `yaml:"brief"`
	Scheduler struct {
		Enabled    bool          `yaml:"enabled"`
		At         string        `yaml:"at" default:"08:00"`
		RunOnStart bool          `yaml:"run_on_start"`
		LockTTL    time.Duration `yaml:"lock_ttl" default:"10m"`
	} `yaml:"scheduler"`
	Telegram struct {
		Enabled   bool          `yaml:"enabled"`
		BotToken  string        `yaml:"bot_token"`
		ChatID    string        `yaml:"chat_id"`
		ParseMode string        `yaml:"parse_mode" default:"HTML"`
		WrapPre   bool          `yaml:"wrap_pre"`
		BaseURL   string        `yaml:"base_url" default:"https://api.telegram.org"`
		Timeout   time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"telegram"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"morning-brief.reports"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"10"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
		// Relay consumes the topic and rebroadcasts briefs on this node's websocket hub.
		Relay struct {
			Enabled bool   `yaml:"enabled"`
			GroupID string `yaml:"group_id"`
		} `yaml:"relay"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"morningbrief"`
	} `yaml:"redis"`
	WebSocket struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/ws/briefs"`
	} `yaml:"websocket"`
	RateLimit struct {
		Capacity     float64 `yaml:"capacity" default:"3"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"0.05"`
	} `yaml:"ratelimit"`
}

// ProviderConfig selects and tunes the market data provider.
type ProviderConfig struct {
	Type         string        `yaml:"type" default:"mock"`
	HTTPTimeout  time.Duration `yaml:"http_timeout" default:"8s"`
	MockCacheTTL time.Duration `yaml:"mock_cache_ttl" default:"60s"`
	MockSeed     int64         `yaml:"mock_seed"`
	CoinGecko    struct {
		BaseURL string `yaml:"base_url" default:"https://api.coingecko.com/api/v3"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"coingecko"`
	Binance struct {
		BaseURL string `yaml:"base_url" default:"https://fapi.binance.com"`
	} `yaml:"binance"`
	News struct {
		Feeds        []string `yaml:"feeds"`
		FallbackURL  string   `yaml:"fallback_url" default:"https://min-api.cryptocompare.com/data/v2/news/?lang=EN"`
		MaxItems     int      `yaml:"max_items" default:"20"`
		GenericTerms []string `yaml:"generic_terms"`
	} `yaml:"news"`
}

// Default returns a config with every default applied, as if loaded from an empty file.
func Default() *Config {
	c := &Config{}
	_ = defaults.Set(c)
	c.applyListDefaults()
	return c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyListDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (if present), the YAML file (if present) and then applies
// environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var c *Config
	if _, err := os.Stat(path); err == nil {
		c, err = Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		c = Default()
	}

	c.ApplyEnv(os.LookupEnv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from environment variables looked up through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = SplitList(v)
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("PROVIDER", &c.Provider.Type)
	list("SYMBOLS", &c.Brief.Symbols)
	list("KEYWORDS", &c.Brief.Keywords)
	str("TIMEZONE", &c.Brief.Timezone)
	str("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	str("TELEGRAM_CHAT_ID", &c.Telegram.ChatID)
	str("TELEGRAM_PARSE_MODE", &c.Telegram.ParseMode)
	flag("SEND_TELEGRAM", &c.Telegram.Enabled)
	flag("TELEGRAM_WRAP_PRE", &c.Telegram.WrapPre)
	list("KAFKA_BROKERS", &c.Kafka.Brokers)
	str("KAFKA_TOPIC", &c.Kafka.Topic)
	str("REDIS_HOST", &c.Redis.Host)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("COINGECKO_API_KEY", &c.Provider.CoinGecko.APIKey)
	str("LOG_LEVEL", &c.Log.Level)
	flag("SCHEDULER_ENABLED", &c.Scheduler.Enabled)
	str("SCHEDULER_AT", &c.Scheduler.At)
	if v, ok := lookup("PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	flag("KAFKA_ENABLED", &c.Kafka.Enabled)
	flag("REDIS_ENABLED", &c.Redis.Enabled)
}

func (c *Config) applyListDefaults() {
	if len(c.Brief.Symbols) == 0 {
		c.Brief.Symbols = []string{"BTC", "ETH"}
	}
	if len(c.Brief.Keywords) == 0 {
		c.Brief.Keywords = []string{"bitcoin", "ethereum"}
	}
	if len(c.Provider.News.Feeds) == 0 {
		c.Provider.News.Feeds = []string{
			"https://www.coindesk.com/arc/outboundfeeds/rss/",
			"https://cointelegraph.com/rss",
			"https://decrypt.co/feed",
		}
	}
	if len(c.Provider.News.GenericTerms) == 0 {
		c.Provider.News.GenericTerms = []string{
			"crypto", "cryptocurrency", "blockchain", "bitcoin", "btc",
			"ethereum", "eth", "defi", "stablecoin", "etf", "sec", "market",
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Brief.Symbols) == 0 {
		return fmt.Errorf("brief.symbols cannot be empty")
	}
	if _, err := time.LoadLocation(c.Brief.Timezone); err != nil {
		return fmt.Errorf("brief.timezone %q: %w", c.Brief.Timezone, err)
	}
	switch strings.ToUpper(c.Telegram.ParseMode) {
	case "HTML", "MARKDOWNV2":
	default:
		return fmt.Errorf("telegram.parse_mode must be 'HTML' or 'MarkdownV2', got '%s'", c.Telegram.ParseMode)
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id are required when telegram is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if _, _, err := ParseClock(c.Scheduler.At); err != nil {
		return fmt.Errorf("scheduler.at: %w", err)
	}
	if c.Provider.News.MaxItems <= 0 {
		return fmt.Errorf("provider.news.max_items must be positive")
	}
	return nil
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour(), t.Minute(), nil
}

// SplitList splits a comma separated list, trimming blanks.
func SplitList(s string) []string {
	return xutil.SplitCSV(s)
}
