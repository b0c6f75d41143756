package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatpulse/internal/adapters/ai"
	"chatpulse/internal/adapters/config"
	"chatpulse/internal/domain/chat"
	"chatpulse/internal/domain/influence"
	"chatpulse/internal/domain/market"
	"chatpulse/internal/domain/profile"
	"chatpulse/pkg/errors"
)

func testAnalysisConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		WindowSize:             10 * time.Minute,
		MinWindowMessages:      5,
		TopN:                   10,
		MaxPromptMessages:      50,
		MaxMessageChars:        200,
		WeightForwardLooking:   3.0,
		WeightCitation:         2.0,
		WeightBehaviorChange:   4.0,
		WeightEventPresence:    2.5,
		WeightHindsightPenalty: 1.5,
		WeightEmotionalPenalty: 0.5,
	}
}

func testAIConfig() config.AIConfig {
	return config.AIConfig{
		Model:          "test-model",
		Timeout:        time.Second,
		MaxConcurrency: 2,
	}
}

// testBatch builds a small but featureful conversation: alice makes calls,
// bob and carol act on them, dave spams
func testBatch() []chat.RawMessage {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

	return []chat.RawMessage{
		{MessageID: "m1", UserID: "alice", UserName: "Alice", Timestamp: at(0), Text: "BTC looking bullish, breakout incoming"},
		{MessageID: "m2", UserID: "bob", UserName: "Bob", Timestamp: at(2), Text: "buying some here", ReplyTo: "m1"},
		{MessageID: "m3", UserID: "carol", UserName: "Carol", Timestamp: at(3), Text: "bought as well", ReplyTo: "m1"},
		{MessageID: "m4", UserID: "alice", UserName: "Alice", Timestamp: at(5), Text: "if we reclaim 52k I'm going long more"},
		{MessageID: "m5", UserID: "dave", UserName: "Dave", Timestamp: at(6), Text: "LFG!!! 🚀🚀"},
		{MessageID: "m6", UserID: "dave", UserName: "Dave", Timestamp: at(7), Text: "omg insane!!!"},
		{MessageID: "m7", UserID: "dave", UserName: "Dave", Timestamp: at(8), Text: "wtf this is crazy!!!"},
		{MessageID: "m8", UserID: "bob", UserName: "Bob", Timestamp: at(9), Text: "added more on the dip"},
		{MessageID: "m9", UserID: "carol", UserName: "Carol", Timestamp: at(12), Text: "morning all"},
		{MessageID: "m10", UserID: "alice", UserName: "Alice", Timestamp: at(14), Text: "still bullish on this rally"},
	}
}

func newTestService(llm ai.ChatProvider, storage Storage) *Service {
	return NewService(llm, testAIConfig(), testAnalysisConfig(), storage, nil)
}

func TestAnalyzeValidation(t *testing.T) {
	s := newTestService(ai.NewNoopProvider(), Storage{})

	_, err := s.Analyze(context.Background(), Request{ChannelID: "c1"})
	assert.True(t, errors.Is(err, errors.ErrNoMessages))

	_, err = s.Analyze(context.Background(), Request{ChannelID: "c1", Messages: testBatch(), TopN: -1})
	assert.True(t, errors.Is(err, errors.ErrInvalidTopN))

	// A batch of blank texts annotates down to nothing
	_, err = s.Analyze(context.Background(), Request{
		ChannelID: "c1",
		Messages:  []chat.RawMessage{{UserID: "u1", Timestamp: time.Now(), Text: "   "}},
	})
	assert.True(t, errors.Is(err, errors.ErrNoMessages))
}

func TestAnalyzeSkipLLMIsDeterministic(t *testing.T) {
	s := newTestService(ai.NewNoopProvider(), Storage{})
	req := Request{ChannelID: "c1", ChannelName: "Test Group", Messages: testBatch(), SkipLLM: true}

	first, err := s.Analyze(context.Background(), req)
	require.NoError(t, err)
	second, err := s.Analyze(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 0, first.LLMCallCount)
	assert.Equal(t, 10, len(first.Messages))
	assert.Equal(t, 4, len(first.Members))
	assert.Equal(t, len(first.Members), len(first.Profiles))
	assert.NotNil(t, first.Insights)
	assert.NotEmpty(t, first.Report)

	require.Equal(t, len(first.Members), len(second.Members))
	for i := range first.Members {
		assert.Equal(t, first.Members[i].UserID, second.Members[i].UserID)
		assert.Equal(t, first.Members[i].InfluenceScore, second.Members[i].InfluenceScore)
		assert.Equal(t, first.Members[i].Rank, second.Members[i].Rank)
	}
}

func TestAnalyzeRanksAliceFirst(t *testing.T) {
	s := newTestService(ai.NewNoopProvider(), Storage{})

	result, err := s.Analyze(context.Background(), Request{ChannelID: "c1", Messages: testBatch(), SkipLLM: true})
	require.NoError(t, err)

	require.NotEmpty(t, result.Members)
	top := result.Members[0]
	assert.Equal(t, "alice", top.UserID)
	assert.Equal(t, 1, top.Rank)
	assert.Greater(t, top.InfluenceScore, 0.0)
	assert.Equal(t, 2, top.CitationCount)
}

func TestAnalyzeDegradesGracefullyWithoutLLM(t *testing.T) {
	// A live pipeline with a dead provider: every call errors, the run
	// still completes with rule-based profiles
	s := newTestService(ai.NewNoopProvider(), Storage{})

	result, err := s.Analyze(context.Background(), Request{ChannelID: "c1", Messages: testBatch()})
	require.NoError(t, err)

	assert.Greater(t, result.LLMCallCount, 0)
	require.Equal(t, len(result.Members), len(result.Profiles))
	for _, p := range result.Profiles {
		assert.NotEmpty(t, p.RoleType, "fallback must assign a role to %s", p.UserID)
	}
	assert.NotNil(t, result.Insights)
	assert.Empty(t, result.Insights.Summary)
}

func TestAnalyzeTopNLimitsProfiles(t *testing.T) {
	s := newTestService(ai.NewNoopProvider(), Storage{})

	result, err := s.Analyze(context.Background(), Request{ChannelID: "c1", Messages: testBatch(), TopN: 2, SkipLLM: true})
	require.NoError(t, err)

	assert.Len(t, result.Profiles, 2)
	assert.Equal(t, 4, len(result.Members), "scoring always covers everyone")
}

func TestAnalyzeStorageFailureDoesNotFailRun(t *testing.T) {
	storage := Storage{
		Influence: failingInfluenceRepo{},
		Profiles:  failingProfileRepo{},
		Insights:  failingInsightsRepo{},
		Events:    failingArchive{},
		Reports:   failingReportCache{},
	}
	s := newTestService(ai.NewNoopProvider(), storage)

	result, err := s.Analyze(context.Background(), Request{ChannelID: "c1", Messages: testBatch(), SkipLLM: true})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Report)
}

func TestAnalyzePersistsToConfiguredStorage(t *testing.T) {
	repo := &capturingInfluenceRepo{}
	s := newTestService(ai.NewNoopProvider(), Storage{Influence: repo})

	_, err := s.Analyze(context.Background(), Request{ChannelID: "c1", Messages: testBatch(), SkipLLM: true})
	require.NoError(t, err)

	assert.Equal(t, "c1", repo.channelID)
	assert.Len(t, repo.members, 4)
}

func TestBuildReportSections(t *testing.T) {
	s := newTestService(ai.NewNoopProvider(), Storage{})

	result, err := s.Analyze(context.Background(), Request{ChannelID: "c1", ChannelName: "Degen Lounge", Messages: testBatch(), SkipLLM: true})
	require.NoError(t, err)

	assert.Contains(t, result.Report, "# Influence Report: Degen Lounge")
	assert.Contains(t, result.Report, "## Top Influencers")
	assert.Contains(t, result.Report, "## Member Profiles")
	assert.Contains(t, result.Report, "## Group Insights")
	assert.Contains(t, result.Report, "Alice")
	assert.Contains(t, result.Report, "0 LLM calls")
}

// Failing storage stubs

var errStorage = errors.New("storage down")

type failingInfluenceRepo struct{}

func (failingInfluenceRepo) UpsertScores(ctx context.Context, channelID string, members []*influence.MemberInfluence) error {
	return errStorage
}
func (failingInfluenceRepo) GetScores(ctx context.Context, channelID string) ([]*influence.MemberInfluence, error) {
	return nil, errStorage
}

type failingProfileRepo struct{}

func (failingProfileRepo) UpsertProfiles(ctx context.Context, channelID string, profiles []*profile.MemberProfile) error {
	return errStorage
}
func (failingProfileRepo) GetProfiles(ctx context.Context, channelID string) ([]*profile.MemberProfile, error) {
	return nil, errStorage
}

type failingInsightsRepo struct{}

func (failingInsightsRepo) UpsertInsights(ctx context.Context, channelID string, insights *profile.GroupInsights) error {
	return errStorage
}
func (failingInsightsRepo) GetInsights(ctx context.Context, channelID string) (*profile.GroupInsights, error) {
	return nil, errStorage
}

type failingArchive struct{}

func (failingArchive) InsertEvents(ctx context.Context, channelID string, events []*market.Event) error {
	return errStorage
}

type failingReportCache struct{}

func (failingReportCache) Save(ctx context.Context, channelID, report string) error {
	return errStorage
}

type capturingInfluenceRepo struct {
	channelID string
	members   []*influence.MemberInfluence
}

func (r *capturingInfluenceRepo) UpsertScores(ctx context.Context, channelID string, members []*influence.MemberInfluence) error {
	r.channelID = channelID
	r.members = members
	return nil
}
func (r *capturingInfluenceRepo) GetScores(ctx context.Context, channelID string) ([]*influence.MemberInfluence, error) {
	return nil, nil
}
