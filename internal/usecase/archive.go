package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MorningBrief/internal/domain/models"
	"MorningBrief/pkg/cache"
)

// ErrBriefNotFound is returned when no brief was archived for the requested date.
var ErrBriefNotFound = errors.New("brief not found")

const (
	archiveTTL = 7 * 24 * time.Hour
	sentTTL    = 48 * time.Hour
)

func BriefKey(date string) string { return cache.Key("brief", date) }
func SentKey(date string) string  { return cache.Key("brief", "sent", date) }
func LockKey(date string) string  { return cache.Key("brief", "lock", date) }

var latestKey = cache.Key("brief", "latest")

// Archive keeps recent briefs and the per-day delivery marker in the shared cache,
// so replicas agree on what was already sent.
type Archive struct {
	cache cache.Service
}

func NewArchive(c cache.Service) *Archive {
	return &Archive{cache: c}
}

// Save stores b under its date and as the latest brief.
func (a *Archive) Save(ctx context.Context, b *models.Brief) error {
	if err := a.cache.Set(ctx, BriefKey(b.Date), b, archiveTTL); err != nil {
		return fmt.Errorf("archive brief %s: %w", b.Date, err)
	}
	if err := a.cache.Set(ctx, latestKey, b, archiveTTL); err != nil {
		return fmt.Errorf("archive latest: %w", err)
	}
	return nil
}

func (a *Archive) Get(ctx context.Context, date string) (*models.Brief, error) {
	return a.load(ctx, BriefKey(date))
}

func (a *Archive) Latest(ctx context.Context) (*models.Brief, error) {
	return a.load(ctx, latestKey)
}

func (a *Archive) load(ctx context.Context, key string) (*models.Brief, error) {
	var b models.Brief
	if err := a.cache.Get(ctx, key, &b); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrBriefNotFound
		}
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return &b, nil
}

// MarkSent records that the daily brief for date went out.
func (a *Archive) MarkSent(ctx context.Context, date string) error {
	return a.cache.Set(ctx, SentKey(date), time.Now().UTC().Format(time.RFC3339), sentTTL)
}

func (a *Archive) Sent(ctx context.Context, date string) (bool, error) {
	return a.cache.Exists(ctx, SentKey(date))
}

// Lock takes the run lock for date. release is a no-op when ok is false.
func (a *Archive) Lock(ctx context.Context, date string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	token, ok, err := a.cache.TryLock(ctx, LockKey(date), ttl)
	if err != nil || !ok {
		return func(context.Context) error { return nil }, false, err
	}
	return func(ctx context.Context) error {
		return a.cache.Unlock(ctx, LockKey(date), token)
	}, true, nil
}
