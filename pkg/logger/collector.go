package logger

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships a batch of aggregated entries. pkg/kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

type CollectorConfig struct {
	FlushInterval  time.Duration // e.g. 30s
	CountThreshold int           // unique entries before an early flush
	Topic          string
	Publisher      Publisher
}

// Digest is one deduplicated warn/error line with its occurrence count.
type Digest struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// Collector folds repeated warnings (provider fallbacks, failed deliveries) into
// counted digests and publishes them periodically.
type Collector struct {
	config  CollectorConfig
	entries map[string]*Digest
	mutex   sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	now     func() time.Time
}

func NewCollector(config CollectorConfig) *Collector {
	if config.FlushInterval <= 0 {
		config.FlushInterval = 30 * time.Second
	}
	if config.CountThreshold <= 0 {
		config.CountThreshold = 100
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &Collector{
		config:  config,
		entries: make(map[string]*Digest),
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
	}

	c.wg.Add(1)
	go c.periodicFlush()

	return c
}

func (c *Collector) Add(level, message string, fields map[string]interface{}, caller string) {
	now := c.now()
	key := digestKey(level, message, fields, caller)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.Count++
		entry.LastSeen = now
	} else {
		c.entries[key] = &Digest{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(c.entries) >= c.config.CountThreshold {
		c.flushLocked()
	}
}

// Pending returns the digests not yet flushed, most frequent first.
func (c *Collector) Pending() []Digest {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.snapshotLocked()
}

func (c *Collector) snapshotLocked() []Digest {
	out := make([]Digest, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].FirstSeen.Before(out[j].FirstSeen)
	})
	return out
}

func digestKey(level, message string, fields map[string]interface{}, caller string) string {
	data := struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
		Caller  string                 `json:"caller"`
	}{level, message, fields, caller}

	b, _ := json.Marshal(data)
	return fmt.Sprintf("%x", sha256.Sum256(b))
}

func (c *Collector) periodicFlush() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.flushLocked()
			c.mutex.Unlock()
		case <-c.ctx.Done():
			c.mutex.Lock()
			c.flushLocked()
			c.mutex.Unlock()
			return
		}
	}
}

func (c *Collector) flushLocked() {
	if len(c.entries) == 0 || c.config.Publisher == nil {
		return
	}

	batch := c.snapshotLocked()
	c.entries = make(map[string]*Digest)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := c.config.Publisher.Publish(ctx, c.config.Topic, []byte("log-digest"), batch); err != nil {
			fmt.Fprintf(os.Stderr, "failed to publish log digest: %v\n", err)
		}
	}()
}

func (c *Collector) Close() {
	c.cancel()
	c.wg.Wait()
}
