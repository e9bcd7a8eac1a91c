package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MorningBrief/pkg/config"
	xhttp "MorningBrief/pkg/http"
	pkgkafka "MorningBrief/pkg/kafka"
	applogger "MorningBrief/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	scheduler  *Scheduler
	relay      *pkgkafka.Consumer
	closers    []io.Closer
	onStop     []func()
}

// New creates the App. scheduler and relay may be nil when disabled; closers are
// closed in order on shutdown (producer, cache).
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	scheduler *Scheduler,
	relay *pkgkafka.Consumer,
	closers ...io.Closer,
) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		log:        log.With(applogger.String("component", "app")),
		httpServer: httpServer,
		scheduler:  scheduler,
		relay:      relay,
		closers:    closers,
	}
}

// OnStop registers fn to run after the server and background workers stop.
func (a *App) OnStop(fn func()) { a.onStop = append(a.onStop, fn) }

// Start launches the relay, the scheduler and the HTTP server.
func (a *App) Start(ctx context.Context) error {
	if a.relay != nil {
		a.relay.Start(ctx)
		a.log.Info("kafka relay started", applogger.String("topic", a.cfg.Kafka.Topic))
	}

	if a.scheduler != nil {
		a.scheduler.Start(ctx)
		a.log.Info("scheduler started",
			applogger.String("at", a.cfg.Scheduler.At),
			applogger.String("tz", a.cfg.Brief.Timezone),
			applogger.Bool("run_on_start", a.cfg.Scheduler.RunOnStart))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.Shutdown(context.Background())
}

// Shutdown gracefully stops all services.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.relay != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := a.relay.Stop(stopCtx); err != nil {
			a.log.Warn("kafka relay stop error", applogger.Error(err))
		}
		cancel()
	}

	for _, fn := range a.onStop {
		fn()
	}

	for _, c := range a.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
