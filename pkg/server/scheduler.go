package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MorningBrief/internal/domain/models"
	"MorningBrief/internal/service/metrics"
	"MorningBrief/internal/usecase"
	applogger "MorningBrief/pkg/logger"
	xutil "MorningBrief/pkg/util"
)

// BriefRunner produces a brief; satisfied by *usecase.BriefUseCase.
type BriefRunner interface {
	Generate(ctx context.Context, p usecase.BriefParams) (*models.Brief, error)
}

// SchedulerConfig describes the daily run.
type SchedulerConfig struct {
	Hour       int
	Minute     int
	Location   *time.Location
	Symbols    []string
	Keywords   []string
	LockTTL    time.Duration
	RunOnStart bool
}

type SchedulerOption func(*Scheduler)

func WithSchedulerLogger(l *applogger.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler delivers the brief once per day. The cache lock and sent marker keep
// replicas sharing one cache from delivering twice.
type Scheduler struct {
	runner  BriefRunner
	archive *usecase.Archive
	cfg     SchedulerConfig
	log     *applogger.Logger
	now     func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(runner BriefRunner, archive *usecase.Archive, cfg SchedulerConfig, opts ...SchedulerOption) (*Scheduler, error) {
	if runner == nil || archive == nil {
		return nil, fmt.Errorf("scheduler: runner and archive are required")
	}
	if cfg.Hour < 0 || cfg.Hour > 23 || cfg.Minute < 0 || cfg.Minute > 59 {
		return nil, fmt.Errorf("scheduler: invalid time %02d:%02d", cfg.Hour, cfg.Minute)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	s := &Scheduler{
		runner:  runner,
		archive: archive,
		cfg:     cfg,
		log:     applogger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(applogger.String("component", "scheduler"))
	return s, nil
}

// Next returns the next scheduled run after now.
func (s *Scheduler) Next() time.Time {
	return xutil.NextRun(s.now(), s.cfg.Hour, s.cfg.Minute, s.cfg.Location)
}

// Start runs the timer loop in the background until Stop or ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	if s.cfg.RunOnStart {
		s.tick(ctx)
	}
	for {
		next := s.Next()
		s.log.Info("next brief scheduled", applogger.String("at", next.Format(time.RFC3339)))
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error("scheduled brief failed", applogger.Error(err))
	}
}

// RunOnce generates and delivers today's brief unless another run already did.
// It reports whether this call delivered.
func (s *Scheduler) RunOnce(ctx context.Context) (bool, error) {
	start := time.Now()
	date := xutil.DateIn(s.now(), s.cfg.Location)
	log := s.log.With(applogger.String("date", date))

	ran, err := s.runOnce(ctx, date, log)
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case !ran:
		result = "skipped"
	}
	metrics.ObserveRun(metrics.TriggerScheduler, result, time.Since(start).Seconds())
	return ran, err
}

func (s *Scheduler) runOnce(ctx context.Context, date string, log *applogger.Logger) (bool, error) {
	if sent, err := s.archive.Sent(ctx, date); err != nil {
		return false, fmt.Errorf("check sent marker: %w", err)
	} else if sent {
		log.Info("brief already delivered, skipping")
		return false, nil
	}

	release, ok, err := s.archive.Lock(ctx, date, s.cfg.LockTTL)
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		log.Info("another instance holds the brief lock, skipping")
		return false, nil
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			log.Warn("release brief lock", applogger.Error(err))
		}
	}()

	// The holder before us may have finished between the check and the lock.
	if sent, err := s.archive.Sent(ctx, date); err == nil && sent {
		return false, nil
	}

	brief, err := s.runner.Generate(ctx, usecase.BriefParams{
		Symbols:  s.cfg.Symbols,
		Keywords: s.cfg.Keywords,
		Timezone: s.cfg.Location.String(),
		Date:     date,
		Deliver:  true,
		Daily:    true,
	})
	if err != nil {
		return false, err
	}

	if err := s.archive.Save(ctx, brief); err != nil {
		log.Warn("archive brief failed", applogger.Error(err))
	}
	if err := s.archive.MarkSent(ctx, date); err != nil {
		return true, fmt.Errorf("mark sent: %w", err)
	}

	failed := 0
	for _, d := range brief.Deliveries {
		if !d.Sent {
			failed++
		}
	}
	log.Info("scheduled brief delivered",
		applogger.Int("channels", len(brief.Deliveries)),
		applogger.Int("failed", failed))
	return true, nil
}
