package notify

import (
	"context"
	"sync"
	"time"

	"MorningBrief/internal/domain/models"
	"MorningBrief/internal/domain/repository"
	"MorningBrief/internal/domain/service"
	applogger "MorningBrief/pkg/logger"
)

// Fanout delivers a brief to every enabled channel concurrently. Failures are
// reported per channel and never abort the other deliveries.
type Fanout struct {
	notifiers []service.Notifier
	log       *applogger.Logger
	metrics   repository.Metrics
}

func NewFanout(log *applogger.Logger, metrics repository.Metrics, notifiers ...service.Notifier) *Fanout {
	if log == nil {
		log = applogger.Nop()
	}
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	var kept []service.Notifier
	for _, n := range notifiers {
		if n != nil {
			kept = append(kept, n)
		}
	}
	return &Fanout{notifiers: kept, log: log.With(applogger.String("component", "notify.fanout")), metrics: metrics}
}

// Channels lists the enabled channel names in registration order.
func (f *Fanout) Channels() []string {
	var out []string
	for _, n := range f.notifiers {
		if n.Enabled() {
			out = append(out, n.Name())
		}
	}
	return out
}

func (f *Fanout) Deliver(ctx context.Context, brief *models.Brief) []models.DeliveryResult {
	var enabled []service.Notifier
	for _, n := range f.notifiers {
		if n.Enabled() {
			enabled = append(enabled, n)
		}
	}
	results := make([]models.DeliveryResult, len(enabled))

	var wg sync.WaitGroup
	for i, n := range enabled {
		wg.Add(1)
		go func(i int, n service.Notifier) {
			defer wg.Done()
			start := time.Now()
			err := n.Send(ctx, brief)
			f.metrics.RecordLatency("deliver."+n.Name(), time.Since(start).Seconds())

			res := models.DeliveryResult{Channel: n.Name(), Sent: err == nil}
			if err != nil {
				res.Error = err.Error()
				f.metrics.RecordDelivery(n.Name(), "failed")
				f.log.Warn("delivery failed", applogger.String("channel", n.Name()),
					applogger.String("date", brief.Date), applogger.Error(err))
			} else {
				f.metrics.RecordDelivery(n.Name(), "sent")
				f.log.Info("brief delivered", applogger.String("channel", n.Name()),
					applogger.String("date", brief.Date), applogger.Duration("elapsed", time.Since(start)))
			}
			results[i] = res
		}(i, n)
	}
	wg.Wait()
	return results
}
