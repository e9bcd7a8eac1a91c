package notify

import (
	"context"
	"encoding/json"
	"fmt"
)

// Relay consumes brief events from Kafka and rebroadcasts them on the local hub,
// so every API replica pushes briefs generated by any of them.
type Relay struct {
	topic string
	hub   *Hub
}

func NewRelay(topic string, hub *Hub) *Relay {
	return &Relay{topic: topic, hub: hub}
}

func (r *Relay) Topic() string { return r.topic }

func (r *Relay) Handle(_ context.Context, data []byte) error {
	var ev BriefEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("decode brief event: %w", err)
	}
	if ev.Type != briefEventType || ev.Date == "" {
		return fmt.Errorf("unexpected event type %q", ev.Type)
	}
	r.hub.Broadcast(data)
	return nil
}
