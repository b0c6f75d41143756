package opinions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatpulse/internal/adapters/ai"
	"chatpulse/internal/domain/chat"
	"chatpulse/internal/domain/profile"
	"chatpulse/pkg/errors"
)

// stubProvider returns a canned response and records the calls it receives
type stubProvider struct {
	content string
	err     error
	calls   int
	lastReq ai.ChatRequest
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Chat(ctx context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &ai.ChatResponse{Content: s.content, Model: req.Model}, nil
}

var extractBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func forwardMsg(id string, offset time.Duration, text string) *chat.AnnotatedMessage {
	return &chat.AnnotatedMessage{
		MessageID: id,
		UserID:    "u1",
		UserName:  "alice",
		Timestamp: extractBase.Add(offset),
		Text:      text,
		Features:  chat.MessageFeatures{HasDirection: true, DirectionType: chat.DirectionBullish},
	}
}

func TestExtractParsesViews(t *testing.T) {
	stub := &stubProvider{content: `{
		"views": [
			{
				"stance": "bullish",
				"target": "BTC",
				"basis": ["breakout above resistance"],
				"conditions": ["holds 50k"],
				"risk_factors": ["macro surprise"],
				"message_indices": [1, 0]
			}
		],
		"trading_style": "technical",
		"core_bias": "trend follower"
	}`}

	e := NewExtractor(stub, Config{Model: "test-model"})

	msgs := []*chat.AnnotatedMessage{
		forwardMsg("m1", 0, "looking bullish"),
		forwardMsg("m2", time.Minute, "breakout coming"),
	}

	result, err := e.Extract(context.Background(), "u1", "alice", msgs)
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)

	require.Len(t, result.Views, 1)
	v := result.Views[0]
	assert.Equal(t, "bullish", v.Stance)
	assert.Equal(t, "BTC", v.Target)
	assert.Equal(t, []string{"m2", "m1"}, v.EvidenceMessages)
	assert.Equal(t, profile.OutcomePending, v.Outcome)
	assert.Equal(t, extractBase, v.FirstMentioned)
	assert.Equal(t, profile.NewViewID("u1", "bullish", "BTC"), v.ViewID)

	assert.Equal(t, profile.StyleTechnical, result.TradingStyle)
	assert.Equal(t, "trend follower", result.CoreBias)
}

func TestExtractSkipsCallWhenNoForwardLooking(t *testing.T) {
	stub := &stubProvider{content: `{}`}
	e := NewExtractor(stub, Config{})

	msgs := []*chat.AnnotatedMessage{
		{MessageID: "m1", UserID: "u1", Timestamp: extractBase, Text: "gm"},
	}

	result, err := e.Extract(context.Background(), "u1", "alice", msgs)
	require.NoError(t, err)
	assert.Empty(t, result.Views)
	assert.Equal(t, 0, stub.calls, "no forward-looking messages means no call")
}

func TestExtractDiscardsViewsWithoutBasis(t *testing.T) {
	stub := &stubProvider{content: `{
		"views": [
			{"stance": "bullish", "target": "ETH", "basis": [], "message_indices": [0]},
			{"stance": "bearish", "target": "SOL", "basis": ["funding overheated"], "message_indices": [0]}
		],
		"trading_style": "sentiment"
	}`}

	e := NewExtractor(stub, Config{})
	msgs := []*chat.AnnotatedMessage{forwardMsg("m1", 0, "call")}

	result, err := e.Extract(context.Background(), "u1", "alice", msgs)
	require.NoError(t, err)
	require.Len(t, result.Views, 1)
	assert.Equal(t, "bearish", result.Views[0].Stance)
}

func TestExtractInvalidIndicesFallBack(t *testing.T) {
	stub := &stubProvider{content: `{
		"views": [
			{"stance": "bullish", "target": "BTC", "basis": ["momentum"], "message_indices": [99, -1]}
		]
	}`}

	e := NewExtractor(stub, Config{})
	msgs := []*chat.AnnotatedMessage{
		forwardMsg("m1", 0, "first call"),
		forwardMsg("m2", time.Minute, "second call"),
	}

	result, err := e.Extract(context.Background(), "u1", "alice", msgs)
	require.NoError(t, err)
	require.Len(t, result.Views, 1)
	assert.Equal(t, []string{"m1"}, result.Views[0].EvidenceMessages)
	assert.Equal(t, extractBase, result.Views[0].FirstMentioned)
}

func TestExtractTolerantParsing(t *testing.T) {
	stub := &stubProvider{content: "Sure! Here is the JSON:\n```json\n" +
		`{"views": [{"stance": "bullish", "basis": ["flows"], "message_indices": [0],},], "trading_style": "mixed",}` +
		"\n```"}

	e := NewExtractor(stub, Config{})
	msgs := []*chat.AnnotatedMessage{forwardMsg("m1", 0, "call")}

	result, err := e.Extract(context.Background(), "u1", "alice", msgs)
	require.NoError(t, err)
	require.Len(t, result.Views, 1)
}

func TestExtractProviderFailure(t *testing.T) {
	stub := &stubProvider{err: errors.ErrUnavailable}
	e := NewExtractor(stub, Config{})
	msgs := []*chat.AnnotatedMessage{forwardMsg("m1", 0, "call")}

	_, err := e.Extract(context.Background(), "u1", "alice", msgs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}

func TestExtractUnparsableResponse(t *testing.T) {
	stub := &stubProvider{content: "I cannot produce JSON today."}
	e := NewExtractor(stub, Config{})
	msgs := []*chat.AnnotatedMessage{forwardMsg("m1", 0, "call")}

	_, err := e.Extract(context.Background(), "u1", "alice", msgs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEmptyResponse))
}

func TestPromptBatchKeepsMostRecent(t *testing.T) {
	e := NewExtractor(&stubProvider{}, Config{MaxMessages: 3})

	var msgs []*chat.AnnotatedMessage
	for i := 0; i < 5; i++ {
		msgs = append(msgs, forwardMsg(
			string(rune('a'+i)), time.Duration(i)*time.Minute, "call"))
	}

	batch := e.promptBatch(msgs)
	require.Len(t, batch, 3)
	assert.Equal(t, "c", batch[0].MessageID)
	assert.Equal(t, "e", batch[2].MessageID)
}

func TestTruncateRuneSafe(t *testing.T) {
	e := NewExtractor(&stubProvider{}, Config{MaxMessageChars: 4})
	assert.Equal(t, "突破新高", e.truncate("突破新高了没有"))
	assert.Equal(t, "abc", e.truncate("abc"))
}
