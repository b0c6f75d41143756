package market

import (
	"context"
	"time"
)

// EventType classifies a detected market event
type EventType string

const (
	EventSpike      EventType = "spike"
	EventDrop       EventType = "drop"
	EventDivergence EventType = "divergence"

	// Reserved for price-anchored detection; never produced by the
	// sentiment-window detector, which has no price feed.
	EventHigh EventType = "high"
	EventLow  EventType = "low"
)

// Event is a detected market event over a half-open interval [Start, End).
// Overlapping same-type windows are merged before events are returned.
type Event struct {
	EventID         string    `json:"event_id"`
	Start           time.Time `json:"start_time"`
	End             time.Time `json:"end_time"`
	Type            EventType `json:"event_type"`
	Intensity       float64   `json:"intensity"`
	RelatedMessages []string  `json:"related_messages"`
}

// Duration returns the event interval length
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Archive stores detected events for offline threshold backtesting
// (ClickHouse, append-only)
type Archive interface {
	InsertEvents(ctx context.Context, channelID string, events []*Event) error
}
