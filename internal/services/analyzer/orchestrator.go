package analyzer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"chatpulse/internal/adapters/ai"
	"chatpulse/internal/adapters/config"
	"chatpulse/internal/domain/chat"
	"chatpulse/internal/domain/influence"
	"chatpulse/internal/domain/market"
	"chatpulse/internal/domain/profile"
	"chatpulse/internal/events"
	"chatpulse/internal/metrics"
	"chatpulse/internal/services/annotate"
	"chatpulse/internal/services/insights"
	"chatpulse/internal/services/marketevents"
	"chatpulse/internal/services/opinions"
	"chatpulse/internal/services/profiles"
	"chatpulse/internal/services/scoring"
	"chatpulse/pkg/errors"
	"chatpulse/pkg/logger"
)

// Request is one analysis run over a channel's exported message batch
type Request struct {
	ChannelID   string
	ChannelName string
	Messages    []chat.RawMessage

	// TopN limits profile building and the report ranking. Zero means the
	// configured default; negative is rejected.
	TopN int

	// SkipLLM runs the deterministic stages only: profiles fall back to
	// rule-based classification and no network call is made.
	SkipLLM bool
}

// Result is the full outcome of one run. Members covers every user in the
// batch; Profiles covers the top-N subset.
type Result struct {
	ChannelID    string
	Messages     []*chat.AnnotatedMessage
	Events       []*market.Event
	Members      []*influence.MemberInfluence
	Profiles     []*profile.MemberProfile
	Insights     *profile.GroupInsights
	Report       string
	LLMCallCount int
	Elapsed      time.Duration
}

// ReportCache stores rendered reports keyed by channel
type ReportCache interface {
	Save(ctx context.Context, channelID, report string) error
}

// Storage bundles the optional persistence backends. Any nil field is
// skipped; a write failure never fails the run.
type Storage struct {
	Influence influence.Repository
	Profiles  profile.Repository
	Insights  profile.InsightsRepository
	Events    market.Archive
	Reports   ReportCache
}

// Service orchestrates the pipeline: annotation, reply graph, event
// detection, scoring, then the LLM-backed extraction/profile/insight stages
// with graceful degradation.
type Service struct {
	llm       ai.ChatProvider
	aiCfg     config.AIConfig
	analysis  config.AnalysisConfig
	weights   influence.Weights
	storage   Storage
	publisher *events.Publisher
	log       *logger.Logger
}

// NewService creates the analysis orchestrator. publisher may be nil.
func NewService(llm ai.ChatProvider, aiCfg config.AIConfig, analysis config.AnalysisConfig, storage Storage, publisher *events.Publisher) *Service {
	if llm == nil {
		llm = ai.NewNoopProvider()
	}
	return &Service{
		llm:      llm,
		aiCfg:    aiCfg,
		analysis: analysis,
		weights: influence.Weights{
			ForwardLooking:   analysis.WeightForwardLooking,
			Citation:         analysis.WeightCitation,
			BehaviorChange:   analysis.WeightBehaviorChange,
			EventPresence:    analysis.WeightEventPresence,
			HindsightPenalty: analysis.WeightHindsightPenalty,
			EmotionalPenalty: analysis.WeightEmotionalPenalty,
		},
		storage:   storage,
		publisher: publisher,
		log:       logger.Get().With("component", "analyzer"),
	}
}

// Analyze runs the full pipeline for one channel batch
func (s *Service) Analyze(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()

	if len(req.Messages) == 0 {
		return nil, errors.Wrap(errors.ErrNoMessages, "empty message batch")
	}
	if req.TopN < 0 {
		return nil, errors.Wrapf(errors.ErrInvalidTopN, "top_n=%d", req.TopN)
	}
	topN := req.TopN
	if topN == 0 {
		topN = s.analysis.TopN
	}
	if err := s.weights.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidWeights, err.Error())
	}

	// Deterministic stages
	stage := time.Now()
	messages := annotate.NewAnnotator().Annotate(req.Messages)
	if len(messages) == 0 {
		return nil, errors.Wrap(errors.ErrNoMessages, "no messages with text")
	}
	annotate.BuildReplyGraph(messages)
	metrics.RecordStage("annotate", time.Since(stage))
	metrics.MessagesProcessed.Add(float64(len(messages)))

	stage = time.Now()
	marketEvents := marketevents.NewDetector(s.analysis.WindowSize, s.analysis.MinWindowMessages).Detect(messages)
	metrics.RecordStage("events", time.Since(stage))
	for _, ev := range marketEvents {
		metrics.EventsDetected.WithLabelValues(string(ev.Type)).Inc()
	}

	stage = time.Now()
	members := scoring.NewScorer(s.weights).Score(messages, marketEvents)
	metrics.RecordStage("scoring", time.Since(stage))

	if topN > len(members) {
		topN = len(members)
	}
	top := members[:topN]

	// Semantic stages
	counting := &countingProvider{next: s.llm}
	stage = time.Now()
	memberProfiles := s.buildProfiles(ctx, counting, messages, top, req.SkipLLM)
	metrics.RecordStage("profiles", time.Since(stage))

	stage = time.Now()
	insightsAnalyzer := insights.NewAnalyzer(counting, insights.Config{
		Model:       s.aiCfg.Model,
		Temperature: s.aiCfg.Temperature,
		MaxTokens:   s.aiCfg.MaxTokens,
		Timeout:     s.aiCfg.Timeout,
	})
	groupInsights := insightsAnalyzer.Analyze(members, memberProfiles)
	if !req.SkipLLM {
		if summary, ok := insightsAnalyzer.Narrative(ctx, groupInsights, len(members)); ok && summary != "" {
			groupInsights.Summary = summary
		}
	}
	metrics.RecordStage("insights", time.Since(stage))

	result := &Result{
		ChannelID:    req.ChannelID,
		Messages:     messages,
		Events:       marketEvents,
		Members:      members,
		Profiles:     memberProfiles,
		Insights:     groupInsights,
		LLMCallCount: int(counting.calls.Load()),
	}
	result.Elapsed = time.Since(started)
	result.Report = BuildReport(req.ChannelName, result)

	s.persist(ctx, req.ChannelID, result)
	s.publish(ctx, req, result)

	metrics.AnalysisRuns.WithLabelValues("success").Inc()
	metrics.RecordStage("total", result.Elapsed)

	s.log.Infof("Analyzed channel %s: %d messages, %d members, %d events, %d LLM calls in %s",
		req.ChannelID, len(messages), len(members), len(marketEvents), result.LLMCallCount, result.Elapsed.Round(time.Millisecond))

	return result, nil
}

// buildProfiles runs extraction and profile building for the top members.
// Each member needs at most two LLM calls; members fan out under a bounded
// semaphore and any per-member failure degrades that member only.
func (s *Service) buildProfiles(ctx context.Context, llm ai.ChatProvider, messages []*chat.AnnotatedMessage, top []*influence.MemberInfluence, skipLLM bool) []*profile.MemberProfile {
	byUser := make(map[string][]*chat.AnnotatedMessage)
	for _, m := range messages {
		byUser[m.UserID] = append(byUser[m.UserID], m)
	}

	extractor := opinions.NewExtractor(llm, opinions.Config{
		Model:           s.aiCfg.Model,
		MaxMessages:     s.analysis.MaxPromptMessages,
		MaxMessageChars: s.analysis.MaxMessageChars,
		Temperature:     s.aiCfg.Temperature,
		MaxTokens:       s.aiCfg.MaxTokens,
		Timeout:         s.aiCfg.Timeout,
	})
	builder := profiles.NewBuilder(llm, profiles.Config{
		Model:       s.aiCfg.Model,
		Temperature: s.aiCfg.Temperature,
		MaxTokens:   s.aiCfg.MaxTokens,
		Timeout:     s.aiCfg.Timeout,
	})

	out := make([]*profile.MemberProfile, len(top))

	if skipLLM {
		for i, member := range top {
			out[i] = builder.BuildFallback(member, nil)
		}
		return out
	}

	concurrency := s.aiCfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for i, member := range top {
		wg.Add(1)
		go func(i int, member *influence.MemberInfluence) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			ext, err := extractor.Extract(ctx, member.UserID, member.UserName, byUser[member.UserID])
			if err != nil {
				s.log.Warnf("Extraction degraded for user %s: %v", member.UserID, err)
				ext = nil
			}

			p, _ := builder.Build(ctx, member, ext)
			out[i] = p
		}(i, member)
	}
	wg.Wait()

	return out
}

// persist writes the run to every configured backend. Best effort: the
// analysis already succeeded, storage trouble is logged and skipped.
func (s *Service) persist(ctx context.Context, channelID string, result *Result) {
	if s.storage.Influence != nil {
		err := s.storage.Influence.UpsertScores(ctx, channelID, result.Members)
		metrics.RecordDBQuery("postgres", "upsert_scores", err)
		if err != nil {
			s.log.Warnf("Failed to persist influence scores: %v", err)
		}
	}
	if s.storage.Profiles != nil {
		err := s.storage.Profiles.UpsertProfiles(ctx, channelID, result.Profiles)
		metrics.RecordDBQuery("postgres", "upsert_profiles", err)
		if err != nil {
			s.log.Warnf("Failed to persist profiles: %v", err)
		}
	}
	if s.storage.Insights != nil {
		err := s.storage.Insights.UpsertInsights(ctx, channelID, result.Insights)
		metrics.RecordDBQuery("postgres", "upsert_insights", err)
		if err != nil {
			s.log.Warnf("Failed to persist insights: %v", err)
		}
	}
	if s.storage.Events != nil {
		err := s.storage.Events.InsertEvents(ctx, channelID, result.Events)
		metrics.RecordDBQuery("clickhouse", "insert_events", err)
		if err != nil {
			s.log.Warnf("Failed to archive market events: %v", err)
		}
	}
	if s.storage.Reports != nil {
		err := s.storage.Reports.Save(ctx, channelID, result.Report)
		metrics.RecordDBQuery("redis", "save_report", err)
		if err != nil {
			s.log.Warnf("Failed to cache report: %v", err)
		}
	}
}

// publish announces the completed run. Best effort, same as persist.
func (s *Service) publish(ctx context.Context, req Request, result *Result) {
	if s.publisher == nil {
		return
	}

	event := &events.AnalysisCompletedEvent{
		ChannelID:      req.ChannelID,
		ChannelName:    req.ChannelName,
		MessageCount:   len(result.Messages),
		MemberCount:    len(result.Members),
		EventCount:     len(result.Events),
		LLMCallCount:   result.LLMCallCount,
		DurationMillis: result.Elapsed.Milliseconds(),
	}
	if len(result.Members) > 0 {
		event.TopUserID = result.Members[0].UserID
		event.TopUserScore = result.Members[0].InfluenceScore
	}

	if err := s.publisher.PublishAnalysisCompleted(ctx, event); err != nil {
		s.log.Warnf("Failed to publish completion event: %v", err)
	}
}

// countingProvider counts the LLM calls of one run
type countingProvider struct {
	next  ai.ChatProvider
	calls atomic.Int64
}

func (c *countingProvider) Name() string { return c.next.Name() }

func (c *countingProvider) Chat(ctx context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
	c.calls.Add(1)
	start := time.Now()
	resp, err := c.next.Chat(ctx, req)
	metrics.RecordLLMCall("chat", time.Since(start), err)
	if err == nil && resp != nil {
		metrics.LLMTokens.WithLabelValues(resp.Model, "input").Add(float64(resp.PromptTokens))
		metrics.LLMTokens.WithLabelValues(resp.Model, "output").Add(float64(resp.CompletionTokens))
	}
	return resp, err
}
