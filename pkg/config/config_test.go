package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "mock", c.Provider.Type)
	assert.Equal(t, 8*time.Second, c.Provider.HTTPTimeout)
	assert.Equal(t, 60*time.Second, c.Provider.MockCacheTTL)
	assert.Equal(t, []string{"BTC", "ETH"}, c.Brief.Symbols)
	assert.Equal(t, []string{"bitcoin", "ethereum"}, c.Brief.Keywords)
	assert.Equal(t, "Asia/Seoul", c.Brief.Timezone)
	assert.Equal(t, "HTML", c.Telegram.ParseMode)
	assert.Equal(t, 20, c.Provider.News.MaxItems)
	assert.NotEmpty(t, c.Provider.News.Feeds)
}

func TestParseOverridesDefaults(t *testing.T) {
	raw := `
environment: prod
provider:
  type: live
  http_timeout: 5s
brief:
  symbols: [BTC, SOL]
  timezone: UTC
scheduler:
  enabled: true
  at: "07:30"
`
	c, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "live", c.Provider.Type)
	assert.Equal(t, 5*time.Second, c.Provider.HTTPTimeout)
	assert.Equal(t, []string{"BTC", "SOL"}, c.Brief.Symbols)
	assert.True(t, c.Scheduler.Enabled)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad timezone", func(c *Config) { c.Brief.Timezone = "Mars/Olympus" }},
		{"bad parse mode", func(c *Config) { c.Telegram.ParseMode = "plain" }},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true }},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }},
		{"bad clock", func(c *Config) { c.Scheduler.At = "8am" }},
		{"no symbols", func(c *Config) { c.Brief.Symbols = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			require.NoError(t, c.Validate())
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestUnknownProviderIsNotAValidationError(t *testing.T) {
	c := Default()
	c.Provider.Type = "nonexistent"
	assert.NoError(t, c.Validate())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PROVIDER":           "public",
		"SYMBOLS":            "btc, eth ,SOL",
		"SEND_TELEGRAM":      "true",
		"TELEGRAM_BOT_TOKEN": "token",
		"TELEGRAM_CHAT_ID":   "42",
		"KAFKA_BROKERS":      "k1:9092,k2:9092",
		"PORT":               "9001",
	}
	c := Default()
	c.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "public", c.Provider.Type)
	assert.Equal(t, []string{"btc", "eth", "SOL"}, c.Brief.Symbols)
	assert.True(t, c.Telegram.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.False(t, c.Kafka.Enabled)
	assert.Equal(t, 9001, c.Server.Port)
	assert.NoError(t, c.Validate())
}

func TestLoadWithEnvMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	c, err := LoadWithEnv(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, c.Brief.Symbols)
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("08:05")
	require.NoError(t, err)
	assert.Equal(t, 8, h)
	assert.Equal(t, 5, m)

	_, _, err = ParseClock("25:00")
	assert.Error(t, err)
}
