package di

import (
	"fmt"
	"io"
	"os"
	"time"

	"MorningBrief/internal/domain/repository"
	"MorningBrief/internal/domain/service"
	"MorningBrief/internal/handler/api"
	"MorningBrief/internal/service/ratelimit"
	"MorningBrief/internal/services/notify"
	"MorningBrief/internal/services/providers"
	"MorningBrief/internal/services/report"
	"MorningBrief/internal/services/signals"
	"MorningBrief/internal/usecase"
	"MorningBrief/pkg/cache"
	"MorningBrief/pkg/config"
	xhttp "MorningBrief/pkg/http"
	pkgkafka "MorningBrief/pkg/kafka"
	applogger "MorningBrief/pkg/logger"
	"MorningBrief/pkg/metrics"
	"MorningBrief/pkg/server"
)

// ProvideLogger builds the application logger from the log section. When the log
// digest is on, warn/error lines are also folded into digests published to Kafka;
// the collector must be attached before any component derives a child logger.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	l = l.With(applogger.String("env", cfg.Environment))

	if cfg.Log.Digest.Enabled && producer != nil {
		l.AttachCollector(applogger.NewCollector(applogger.CollectorConfig{
			FlushInterval:  cfg.Log.Digest.FlushInterval,
			CountThreshold: cfg.Log.Digest.Threshold,
			Topic:          cfg.Log.Digest.Topic,
			Publisher:      producer,
		}))
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder, or a no-op when metrics are off.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return repository.NopMetrics{}
	}
	return metrics.New()
}

// ProvideMarketProvider resolves provider.type through the factory.
func ProvideMarketProvider(cfg *config.Config, log *applogger.Logger, m repository.Metrics) repository.MarketProvider {
	return providers.New(cfg.Provider.Type, providers.Deps{
		Config:  cfg.Provider,
		Logger:  log,
		Metrics: m,
	})
}

// ProvideSignalEngine creates the engine that carries the daily brief's history.
// API requests analyze on engines from ProvideAnalyzerFactory instead.
func ProvideSignalEngine(log *applogger.Logger, m repository.Metrics) *signals.Engine {
	return signals.New(signals.WithLogger(log), signals.WithMetrics(m))
}

func ProvideAnalyzerFactory(log *applogger.Logger, m repository.Metrics) usecase.AnalyzerFactory {
	return func() service.SignalAnalyzer {
		return signals.New(signals.WithLogger(log), signals.WithMetrics(m))
	}
}

func ProvideReportWriter() *report.Writer {
	return report.NewWriter()
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatch(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideHub creates the websocket hub, or nil when websockets are disabled.
func ProvideHub(cfg *config.Config, log *applogger.Logger) *notify.Hub {
	if !cfg.WebSocket.Enabled {
		return nil
	}
	return notify.NewHub(notify.WithHubLogger(log))
}

func ProvideTelegramNotifier(cfg *config.Config, log *applogger.Logger) *notify.TelegramNotifier {
	client := xhttp.NewClient(xhttp.WithTimeout(cfg.Telegram.Timeout))
	return notify.NewTelegramNotifier(client, notify.TelegramConfig{
		Enabled:   cfg.Telegram.Enabled,
		BotToken:  cfg.Telegram.BotToken,
		ChatID:    cfg.Telegram.ChatID,
		ParseMode: cfg.Telegram.ParseMode,
		WrapPre:   cfg.Telegram.WrapPre,
		BaseURL:   cfg.Telegram.BaseURL,
	}, log)
}

// ProvideFanout registers the delivery channels. With the relay on, the hub is fed
// from Kafka instead, so every replica broadcasts each brief exactly once.
func ProvideFanout(
	cfg *config.Config,
	log *applogger.Logger,
	m repository.Metrics,
	tg *notify.TelegramNotifier,
	producer *pkgkafka.Producer,
	hub *notify.Hub,
) *notify.Fanout {
	notifiers := []service.Notifier{tg}
	if producer != nil {
		notifiers = append(notifiers, notify.NewKafkaNotifier(producer, cfg.Kafka.Topic))
	}
	if hub != nil && !relayEnabled(cfg) {
		notifiers = append(notifiers, hub)
	}
	return notify.NewFanout(log, m, notifiers...)
}

func ProvideBriefUseCase(
	cfg *config.Config,
	provider repository.MarketProvider,
	engine *signals.Engine,
	analyzers usecase.AnalyzerFactory,
	writer *report.Writer,
	fanout *notify.Fanout,
	log *applogger.Logger,
	m repository.Metrics,
) *usecase.BriefUseCase {
	return usecase.NewBriefUseCase(provider, engine, writer, fanout,
		usecase.WithBriefLogger(log),
		usecase.WithBriefMetrics(m),
		usecase.WithAnalyzerFactory(analyzers),
		usecase.WithBriefTimeout(2*cfg.Provider.HTTPTimeout+5*time.Second),
	)
}

// ProvideCache returns Redis when enabled, otherwise a process-local cache.
func ProvideCache(cfg *config.Config, log *applogger.Logger) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		log.Info("using in-memory cache; scheduler dedup is per process")
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

func ProvideArchive(c cache.Service) *usecase.Archive {
	return usecase.NewArchive(c)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

func ProvideBriefHandler(
	cfg *config.Config,
	log *applogger.Logger,
	uc *usecase.BriefUseCase,
	limiter *ratelimit.Limiter,
	archive *usecase.Archive,
	fanout *notify.Fanout,
	hub *notify.Hub,
) *api.BriefEchoHandler {
	opts := []api.HandlerOption{
		api.WithRateLimiter(limiter),
		api.WithArchive(archive),
		api.WithChannels(fanout.Channels()),
	}
	if hub != nil {
		opts = append(opts, api.WithWebSocket(cfg.WebSocket.Path, hub))
	}
	return api.NewBriefEchoHandler(log, uc, opts...)
}

func ProvideHTTPServer(cfg *config.Config, log *applogger.Logger, h *api.BriefEchoHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer([]xhttp.Handler{h},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(metricsPath),
		xhttp.WithLogger(log),
	)
}

// ProvideScheduler returns nil when the daily run is disabled.
func ProvideScheduler(cfg *config.Config, log *applogger.Logger, uc *usecase.BriefUseCase, archive *usecase.Archive) (*server.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	hour, minute, err := config.ParseClock(cfg.Scheduler.At)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Brief.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone: %w", err)
	}
	return server.NewScheduler(uc, archive, server.SchedulerConfig{
		Hour:       hour,
		Minute:     minute,
		Location:   loc,
		Symbols:    cfg.Brief.Symbols,
		Keywords:   cfg.Brief.Keywords,
		LockTTL:    cfg.Scheduler.LockTTL,
		RunOnStart: cfg.Scheduler.RunOnStart,
	}, server.WithSchedulerLogger(log))
}

// ProvideRelay consumes the brief topic into the local hub. Each replica uses its
// own group so every node sees every brief.
func ProvideRelay(cfg *config.Config, log *applogger.Logger, hub *notify.Hub) (*pkgkafka.Consumer, error) {
	if !relayEnabled(cfg) || hub == nil {
		return nil, nil
	}
	groupID := cfg.Kafka.Relay.GroupID
	if groupID == "" {
		host, _ := os.Hostname()
		groupID = "morningbrief-relay-" + host
	}
	consumer, err := pkgkafka.NewConsumer(notify.NewRelay(cfg.Kafka.Topic, hub),
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(groupID),
		pkgkafka.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka relay: %w", err)
	}
	return consumer, nil
}

// ProvideApp creates the application. The log digest is flushed before the
// producer closes.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	srv *xhttp.Server,
	scheduler *server.Scheduler,
	relay *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	c cache.Service,
	hub *notify.Hub,
) *server.App {
	var closers []io.Closer
	if producer != nil {
		closers = append(closers, producer)
	}
	closers = append(closers, c)

	app := server.New(cfg, log, srv, scheduler, relay, closers...)
	if hub != nil {
		app.OnStop(hub.Close)
	}
	app.OnStop(log.DetachCollector)
	return app
}

// Runner is the one-shot surface used by the CLI.
type Runner struct {
	Briefs   *usecase.BriefUseCase
	Log      *applogger.Logger
	producer *pkgkafka.Producer
}

// Close flushes the Kafka producer, if any.
func (r *Runner) Close() error {
	if r.producer == nil {
		return nil
	}
	return r.producer.Close()
}

func ProvideRunner(uc *usecase.BriefUseCase, log *applogger.Logger, producer *pkgkafka.Producer) *Runner {
	return &Runner{Briefs: uc, Log: log, producer: producer}
}

func relayEnabled(cfg *config.Config) bool {
	return cfg.Kafka.Enabled && cfg.Kafka.Relay.Enabled
}
