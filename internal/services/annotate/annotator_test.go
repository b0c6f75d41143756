package annotate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatpulse/internal/domain/chat"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want chat.MessageFeatures
	}{
		{
			name: "english bullish",
			text: "BTC looking bullish here, expecting a breakout",
			want: chat.MessageFeatures{HasDirection: true, DirectionType: chat.DirectionBullish},
		},
		{
			name: "english bearish with action",
			text: "this is a dump, I sold everything",
			want: chat.MessageFeatures{HasDirection: true, DirectionType: chat.DirectionBearish, HasAction: true, ActionType: chat.ActionSell},
		},
		{
			name: "chinese bullish",
			text: "btw 突破新高了",
			want: chat.MessageFeatures{HasDirection: true, DirectionType: chat.DirectionBullish},
		},
		{
			name: "chinese buy action",
			text: "我今天买入了一点",
			want: chat.MessageFeatures{HasAction: true, ActionType: chat.ActionBuy},
		},
		{
			name: "conditional direction",
			text: "if we reclaim 50k I'm going long",
			want: chat.MessageFeatures{HasDirection: true, DirectionType: chat.DirectionBullish, HasCondition: true},
		},
		{
			name: "chinese conditional",
			text: "如果站稳三万就加仓",
			want: chat.MessageFeatures{HasCondition: true, HasAction: true, ActionType: chat.ActionAdd},
		},
		{
			name: "hindsight",
			text: "told you so, called the top perfectly",
			want: chat.MessageFeatures{IsHindsight: true},
		},
		{
			name: "chinese hindsight with direction",
			text: "我早就说过要跌",
			want: chat.MessageFeatures{HasDirection: true, DirectionType: chat.DirectionBearish, IsHindsight: true},
		},
		{
			name: "emotional with moon call",
			text: "LFG!!! to the moon 🚀",
			want: chat.MessageFeatures{HasDirection: true, DirectionType: chat.DirectionBullish, IsEmotional: true},
		},
		{
			name: "chinese emotional",
			text: "哈哈哈哈完蛋了",
			want: chat.MessageFeatures{IsEmotional: true},
		},
		{
			name: "plain chatter",
			text: "good morning everyone",
			want: chat.MessageFeatures{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.text)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyDirectionFirstMatchWins(t *testing.T) {
	// Both directions present: bullish is checked first
	got := classify("bulls vs bears, total long and short battle")
	assert.True(t, got.HasDirection)
	assert.Equal(t, chat.DirectionBullish, got.DirectionType)
}

func TestAnnotateHindsightIsNotForwardLooking(t *testing.T) {
	f := classify("果然大涨了, 我说过的")
	assert.True(t, f.HasDirection)
	assert.True(t, f.IsHindsight)
	assert.False(t, f.IsForwardLooking())
}

func TestAnnotateDropsEmptyAndSorts(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []chat.RawMessage{
		{MessageID: "m2", UserID: "u1", Timestamp: base.Add(time.Minute), Text: "second"},
		{MessageID: "m3", UserID: "u1", Timestamp: base, Text: "   "},
		{MessageID: "m1", UserID: "u1", Timestamp: base, Text: "first"},
	}

	got := NewAnnotator().Annotate(records)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].MessageID)
	assert.Equal(t, "m2", got[1].MessageID)
}

func TestAnnotateSynthesizesStableIDs(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []chat.RawMessage{
		{UserID: "u1", Timestamp: base, Text: "no id here"},
	}

	first := NewAnnotator().Annotate(records)
	second := NewAnnotator().Annotate(records)

	require.Len(t, first, 1)
	assert.NotEmpty(t, first[0].MessageID)
	assert.Equal(t, first[0].MessageID, second[0].MessageID)
}

func TestParseTimestampFormats(t *testing.T) {
	a := NewAnnotator()
	want := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  interface{}
	}{
		{"rfc3339", "2024-03-01T12:30:00Z"},
		{"space separated", "2024-03-01 12:30:00"},
		{"minute precision", "2024-03-01 12:30"},
		{"epoch seconds", float64(want.Unix())},
		{"epoch milliseconds", float64(want.UnixMilli())},
		{"numeric string", "1709296200"},
		{"time value", want},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.parseTimestamp(tt.raw)
			assert.Equal(t, want.Unix(), got.Unix())
		})
	}
}

func TestParseTimestampFallsBackToClock(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	a := NewAnnotatorWithClock(func() time.Time { return now })

	got := a.parseTimestamp("not a timestamp at all")
	assert.Equal(t, now, got)

	got = a.parseTimestamp(nil)
	assert.Equal(t, now, got)
}
