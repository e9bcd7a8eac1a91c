package notify

import (
	"context"
	"time"

	"MorningBrief/internal/domain/models"
)

const KafkaName = "kafka"

// Publisher is satisfied by pkg/kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// BriefEvent is the wire form of a finished brief on Kafka and the websocket.
type BriefEvent struct {
	Type        string          `json:"type"`
	Date        string          `json:"date"`
	Timezone    string          `json:"timezone"`
	Markdown    string          `json:"markdown"`
	Regime      models.Regime   `json:"regime"`
	Signals     []models.Signal `json:"signals"`
	Provider    string          `json:"provider"`
	GeneratedAt time.Time       `json:"generated_at"`
}

const briefEventType = "morning_brief"

func NewBriefEvent(b *models.Brief) BriefEvent {
	return BriefEvent{
		Type:        briefEventType,
		Date:        b.Date,
		Timezone:    b.Timezone,
		Markdown:    b.Markdown,
		Regime:      b.Regime,
		Signals:     b.Signals,
		Provider:    b.Provider,
		GeneratedAt: b.GeneratedAt,
	}
}

// KafkaNotifier publishes each brief keyed by its date.
type KafkaNotifier struct {
	pub   Publisher
	topic string
}

func NewKafkaNotifier(pub Publisher, topic string) *KafkaNotifier {
	return &KafkaNotifier{pub: pub, topic: topic}
}

func (k *KafkaNotifier) Name() string { return KafkaName }

func (k *KafkaNotifier) Enabled() bool { return k.pub != nil && k.topic != "" }

func (k *KafkaNotifier) Send(ctx context.Context, brief *models.Brief) error {
	if !k.Enabled() {
		return ErrNotConfigured
	}
	return k.pub.Publish(ctx, k.topic, []byte(brief.Date), NewBriefEvent(brief))
}
