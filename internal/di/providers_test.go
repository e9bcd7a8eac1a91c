package di

import (
	"context"
	"testing"

	"MorningBrief/internal/domain/repository"
	"MorningBrief/internal/usecase"
	"MorningBrief/pkg/config"
	applogger "MorningBrief/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Metrics.Enabled = false
	cfg.Log.Level = "error"
	return cfg
}

func TestInitializeRunnerUsesMockByDefault(t *testing.T) {
	r, err := InitializeRunner(testConfig())
	require.NoError(t, err)
	defer r.Close()

	brief, err := r.Briefs.Generate(context.Background(), usecase.BriefParams{Date: "2024-05-01"})
	require.NoError(t, err)
	assert.Equal(t, "mock", brief.Provider)
	assert.Equal(t, "2024-05-01", brief.Date)
	assert.Empty(t, brief.Deliveries)
}

func TestInitializeAppWithDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.Enabled = true
	app, err := InitializeApp(cfg)
	require.NoError(t, err)
	assert.NotNil(t, app)
}

func TestFanoutLeavesHubToRelay(t *testing.T) {
	cfg := testConfig()
	log := applogger.Nop()
	hub := ProvideHub(cfg, log)
	require.NotNil(t, hub)
	tg := ProvideTelegramNotifier(cfg, log)

	f := ProvideFanout(cfg, log, repository.NopMetrics{}, tg, nil, hub)
	assert.Equal(t, []string{"websocket"}, f.Channels())

	cfg.Kafka.Enabled = true
	cfg.Kafka.Relay.Enabled = true
	f = ProvideFanout(cfg, log, repository.NopMetrics{}, tg, nil, hub)
	assert.Empty(t, f.Channels())
}

func TestDisabledComponentsAreNil(t *testing.T) {
	cfg := testConfig()
	cfg.WebSocket.Enabled = false

	p, err := ProvideKafkaProducer(cfg)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Nil(t, ProvideHub(cfg, applogger.Nop()))

	relay, err := ProvideRelay(cfg, applogger.Nop(), nil)
	require.NoError(t, err)
	assert.Nil(t, relay)

	s, err := ProvideScheduler(cfg, applogger.Nop(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, s)
}
