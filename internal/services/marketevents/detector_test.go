package marketevents

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatpulse/internal/domain/chat"
	"chatpulse/internal/domain/market"
)

var windowBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fill spreads n messages across one 10-minute window starting at offset,
// marking the first `bullish` of them bullish and the next `bearish` bearish
func fill(offset time.Duration, n, bullish, bearish int) []*chat.AnnotatedMessage {
	msgs := make([]*chat.AnnotatedMessage, 0, n)
	for i := 0; i < n; i++ {
		m := &chat.AnnotatedMessage{
			MessageID: fmt.Sprintf("m-%d-%d", offset/time.Minute, i),
			UserID:    fmt.Sprintf("u%d", i%7),
			Timestamp: windowBase.Add(offset + time.Duration(i)*10*time.Second),
		}
		if i < bullish {
			m.Features = chat.MessageFeatures{HasDirection: true, DirectionType: chat.DirectionBullish}
		} else if i < bullish+bearish {
			m.Features = chat.MessageFeatures{HasDirection: true, DirectionType: chat.DirectionBearish}
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func TestDetectSpike(t *testing.T) {
	// 20 messages in one window, 16 bullish: ratio 0.8 over the threshold
	msgs := fill(0, 20, 16, 0)

	events := NewDetector(10*time.Minute, 5).Detect(msgs)

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, market.EventSpike, ev.Type)
	assert.Equal(t, windowBase, ev.Start)
	assert.Equal(t, windowBase.Add(10*time.Minute), ev.End)
	assert.Len(t, ev.RelatedMessages, 20)
	assert.Greater(t, ev.Intensity, 0.0)
	assert.LessOrEqual(t, ev.Intensity, 1.0)
	assert.NotEmpty(t, ev.EventID)
}

func TestDetectDrop(t *testing.T) {
	msgs := fill(0, 10, 0, 8)

	events := NewDetector(10*time.Minute, 5).Detect(msgs)

	require.Len(t, events, 1)
	assert.Equal(t, market.EventDrop, events[0].Type)
}

func TestDetectDivergence(t *testing.T) {
	// Half bullish, half bearish: both ratios inside [0.4, 0.6]
	msgs := fill(0, 10, 5, 5)

	events := NewDetector(10*time.Minute, 5).Detect(msgs)

	require.Len(t, events, 1)
	assert.Equal(t, market.EventDivergence, events[0].Type)
}

func TestDetectSkipsSparseWindows(t *testing.T) {
	// 4 messages, all bullish, but below the window minimum of 5
	msgs := fill(0, 4, 4, 0)

	events := NewDetector(10*time.Minute, 5).Detect(msgs)
	assert.Empty(t, events)
}

func TestDetectNoEventOnMixedChatter(t *testing.T) {
	// 2 of 10 bullish: no threshold reached
	msgs := fill(0, 10, 2, 0)

	events := NewDetector(10*time.Minute, 5).Detect(msgs)
	assert.Empty(t, events)
}

func TestDetectMergesAdjacentSameType(t *testing.T) {
	// Two spike windows back to back become one event
	msgs := append(fill(0, 10, 9, 0), fill(10*time.Minute, 10, 9, 0)...)

	events := NewDetector(10*time.Minute, 5).Detect(msgs)

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, market.EventSpike, ev.Type)
	assert.Equal(t, windowBase, ev.Start)
	assert.Equal(t, windowBase.Add(20*time.Minute), ev.End)
	assert.Len(t, ev.RelatedMessages, 20)
}

func TestDetectDivergenceDoesNotSplitSpike(t *testing.T) {
	// spike, divergence, spike: the spikes merge across the gap, the
	// divergence stays its own event
	msgs := append(fill(0, 10, 9, 0), fill(10*time.Minute, 10, 5, 5)...)
	msgs = append(msgs, fill(20*time.Minute, 10, 9, 0)...)

	events := NewDetector(10*time.Minute, 5).Detect(msgs)

	require.Len(t, events, 2)
	assert.Equal(t, market.EventSpike, events[0].Type)
	assert.Equal(t, windowBase.Add(30*time.Minute), events[0].End)
	assert.Equal(t, market.EventDivergence, events[1].Type)
}

func TestDetectKeepsDistantEventsSeparate(t *testing.T) {
	// Gap of 3 windows between two spikes exceeds 2x window size
	msgs := append(fill(0, 10, 9, 0), fill(40*time.Minute, 10, 9, 0)...)

	events := NewDetector(10*time.Minute, 5).Detect(msgs)

	require.Len(t, events, 2)
	assert.True(t, events[0].Start.Before(events[1].Start))
}

func TestDetectEmptyInput(t *testing.T) {
	assert.Nil(t, NewDetector(10*time.Minute, 5).Detect(nil))
}
