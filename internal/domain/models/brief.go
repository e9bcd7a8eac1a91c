package models

import "time"

// Brief is a rendered morning brief plus the inputs it was built from.
type Brief struct {
	Date        string              `json:"date"` // YYYY-MM-DD in Timezone
	Timezone    string              `json:"timezone"`
	Markdown    string              `json:"markdown"`
	Signals     []Signal            `json:"signals"`
	Regime      Regime              `json:"regime"`
	Spot        SpotSnapshot        `json:"spot"`
	Derivatives DerivativesSnapshot `json:"derivatives"`
	News        []NewsItem          `json:"news"`
	Provider    string              `json:"provider"`
	Sources     map[string]string   `json:"sources,omitempty"` // data kind -> source that served it
	Deliveries  []DeliveryResult    `json:"deliveries,omitempty"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// DeliveryResult records one channel's best-effort delivery attempt.
type DeliveryResult struct {
	Channel string `json:"channel"`
	Sent    bool   `json:"sent"`
	Error   string `json:"error,omitempty"`
}
