package marketevents

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"chatpulse/internal/domain/chat"
	"chatpulse/internal/domain/market"
	"chatpulse/pkg/logger"
)

const (
	bullishThreshold    = 0.7
	bearishThreshold    = 0.7
	divergenceLow       = 0.4
	divergenceHigh      = 0.6
	densityNormalFactor = 10.0

	weightDensity   = 0.4
	weightUnanimity = 0.3
	weightAction    = 0.3
)

// Detector finds market events by sliding a fixed time window over the
// aggregate sentiment of annotated messages
type Detector struct {
	windowSize  time.Duration
	minMessages int
	log         *logger.Logger
}

// NewDetector creates a detector. windowSize <= 0 defaults to 10 minutes,
// minMessages <= 0 defaults to 5.
func NewDetector(windowSize time.Duration, minMessages int) *Detector {
	if windowSize <= 0 {
		windowSize = 10 * time.Minute
	}
	if minMessages <= 0 {
		minMessages = 5
	}
	return &Detector{
		windowSize:  windowSize,
		minMessages: minMessages,
		log:         logger.Get().With("component", "event_detector"),
	}
}

// window aggregates one fixed time bucket
type window struct {
	start    time.Time
	messages []*chat.AnnotatedMessage
}

// Detect partitions sorted messages into fixed non-overlapping windows,
// classifies each window's aggregate sentiment and merges adjacent same-type
// windows into event intervals. Input must be sorted ascending by timestamp.
func (d *Detector) Detect(messages []*chat.AnnotatedMessage) []*market.Event {
	if len(messages) == 0 {
		return nil
	}

	windows := d.partition(messages)
	if len(windows) == 0 {
		return nil
	}

	total := 0
	for _, w := range windows {
		total += len(w.messages)
	}
	avgPerWindow := float64(total) / float64(len(windows))

	var events []*market.Event
	for _, w := range windows {
		if len(w.messages) < d.minMessages {
			continue
		}
		if ev := d.classify(w, avgPerWindow); ev != nil {
			events = append(events, ev)
		}
	}

	merged := d.merge(events)

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Start.Before(merged[j].Start)
	})

	d.log.Debugf("Detected %d events from %d windows (%d messages)", len(merged), len(windows), total)
	return merged
}

// partition buckets messages by timestamp floored to the window boundary,
// returning windows in chronological order
func (d *Detector) partition(messages []*chat.AnnotatedMessage) []window {
	buckets := make(map[time.Time][]*chat.AnnotatedMessage)
	for _, m := range messages {
		key := m.Timestamp.Truncate(d.windowSize)
		buckets[key] = append(buckets[key], m)
	}

	windows := make([]window, 0, len(buckets))
	for start, msgs := range buckets {
		windows = append(windows, window{start: start, messages: msgs})
	}
	sort.Slice(windows, func(i, j int) bool {
		return windows[i].start.Before(windows[j].start)
	})
	return windows
}

// classify applies the ordered classification rules to one window
func (d *Detector) classify(w window, avgPerWindow float64) *market.Event {
	count := len(w.messages)

	var bullish, bearish, actions int
	for _, m := range w.messages {
		if m.Features.HasDirection {
			switch m.Features.DirectionType {
			case chat.DirectionBullish:
				bullish++
			case chat.DirectionBearish:
				bearish++
			}
		}
		if m.Features.HasAction {
			actions++
		}
	}

	bullishRatio := float64(bullish) / float64(count)
	bearishRatio := float64(bearish) / float64(count)
	actionRatio := float64(actions) / float64(count)

	var eventType market.EventType
	switch {
	case bullishRatio >= bullishThreshold:
		eventType = market.EventSpike
	case bearishRatio >= bearishThreshold:
		eventType = market.EventDrop
	case bullishRatio >= divergenceLow && bullishRatio <= divergenceHigh &&
		bearishRatio >= divergenceLow && bearishRatio <= divergenceHigh:
		eventType = market.EventDivergence
	default:
		return nil
	}

	density := float64(count) / (densityNormalFactor * avgPerWindow)
	if density > 1 {
		density = 1
	}
	unanimity := bullishRatio
	if bearishRatio > unanimity {
		unanimity = bearishRatio
	}

	intensity := weightDensity*density + weightUnanimity*unanimity + weightAction*actionRatio
	if intensity > 1 {
		intensity = 1
	}
	if intensity < 0 {
		intensity = 0
	}

	related := make([]string, 0, count)
	for _, m := range w.messages {
		related = append(related, m.MessageID)
	}

	return &market.Event{
		EventID:         uuid.NewString(),
		Start:           w.start,
		End:             w.start.Add(d.windowSize),
		Type:            eventType,
		Intensity:       intensity,
		RelatedMessages: related,
	}
}

// merge joins same-type events whose gap is at most twice the window size,
// so one sustained move is reported as a single event instead of a chain of
// fragments. Merging is per type: a lone divergence window between two spike
// windows does not break the spike in two. Events must be ordered by start.
func (d *Detector) merge(events []*market.Event) []*market.Event {
	if len(events) < 2 {
		return events
	}

	maxGap := 2 * d.windowSize

	byType := make(map[market.EventType][]*market.Event)
	var order []market.EventType
	for _, ev := range events {
		if _, seen := byType[ev.Type]; !seen {
			order = append(order, ev.Type)
		}
		byType[ev.Type] = append(byType[ev.Type], ev)
	}

	var merged []*market.Event
	for _, t := range order {
		group := byType[t]
		current := group[0]
		for _, ev := range group[1:] {
			if ev.Start.Sub(current.End) <= maxGap {
				if ev.End.After(current.End) {
					current.End = ev.End
				}
				if ev.Intensity > current.Intensity {
					current.Intensity = ev.Intensity
				}
				current.RelatedMessages = append(current.RelatedMessages, ev.RelatedMessages...)
				continue
			}
			merged = append(merged, current)
			current = ev
		}
		merged = append(merged, current)
	}

	return merged
}
