package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWithBindsFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug").With(String("component", "provider.live"))

	l.Warn("spot fetch failed", String("kind", "spot"), Error(errors.New("boom")), Float64("ratio", 0.5))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "provider.live", line["component"])
	assert.Equal(t, "spot", line["kind"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, 0.5, line["ratio"])
}

func TestLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")
	l.Info("hidden")
	l.Debug("hidden")
	assert.Zero(t, buf.Len())
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}

func TestCollectorDeduplicates(t *testing.T) {
	c := NewCollector(CollectorConfig{FlushInterval: time.Hour, CountThreshold: 100})
	defer c.Close()

	fields := map[string]interface{}{"kind": "spot"}
	c.Add("warn", "fallback used", fields, "providers/live.go:10")
	c.Add("warn", "fallback used", fields, "providers/live.go:10")
	c.Add("error", "telegram send failed", nil, "notify/telegram.go:40")

	pending := c.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "fallback used", pending[0].Message)
	assert.Equal(t, 2, pending[0].Count)
	assert.Equal(t, 1, pending[1].Count)
}

type capturePublisher struct {
	mu     sync.Mutex
	topics []string
	done   chan struct{}
}

func (p *capturePublisher) Publish(_ context.Context, topic string, _ []byte, _ interface{}) error {
	p.mu.Lock()
	p.topics = append(p.topics, topic)
	p.mu.Unlock()
	p.done <- struct{}{}
	return nil
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{done: make(chan struct{}, 4)}
	c := NewCollector(CollectorConfig{FlushInterval: time.Hour, CountThreshold: 2, Topic: "brief.logs", Publisher: pub})
	defer c.Close()

	l := Nop()
	l.AttachCollector(c)
	l.Warn("a")
	l.Error("b")

	select {
	case <-pub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("digest was not published")
	}
	assert.Empty(t, c.Pending())
	pub.mu.Lock()
	assert.Equal(t, []string{"brief.logs"}, pub.topics)
	pub.mu.Unlock()
}
