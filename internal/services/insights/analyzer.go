package insights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatpulse/internal/adapters/ai"
	"chatpulse/internal/domain/influence"
	"chatpulse/internal/domain/profile"
	"chatpulse/pkg/logger"
)

const (
	amplifierMinSpam      = 2
	amplifierMinCitations = 2
	overRelianceTopCount  = 3
	overRelianceShare     = 0.6
	anchorFallbackCount   = 3
)

// Echo-chamber buckets. Intentionally coarse: a continuous measure would
// suggest precision the small view samples cannot support.
const (
	echoHighConcentration = 0.8 // max stance share above this -> 0.2
	echoMidConcentration  = 0.6 // max stance share above this -> 0.5
	echoScoreUniform      = 0.2
	echoScoreLeaning      = 0.5
	echoScoreDiverse      = 0.8
)

// Config holds the optional narrative call parameters
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Analyzer computes group-level behavioral risk metrics. All metrics are
// rule-based; the narrative summary is the only (optional) external call.
type Analyzer struct {
	llm ai.ChatProvider
	cfg Config
	log *logger.Logger
}

// NewAnalyzer creates an insights analyzer
func NewAnalyzer(llm ai.ChatProvider, cfg Config) *Analyzer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Analyzer{
		llm: llm,
		cfg: cfg,
		log: logger.Get().With("component", "insights"),
	}
}

// Analyze computes the rule-based metrics. members is the full ranked set
// (susceptibility and over-reliance run over everyone analyzed); profiles
// covers the top-N subset only.
func (a *Analyzer) Analyze(members []*influence.MemberInfluence, profiles []*profile.MemberProfile) *profile.GroupInsights {
	ins := &profile.GroupInsights{
		OpinionAnchors:      opinionAnchors(members, profiles),
		EmotionAmplifiers:   emotionAmplifiers(members),
		EchoChamberScore:    echoChamberScore(profiles),
		GroupSusceptibility: susceptibility(members),
	}

	ins.OverRelianceWarning, ins.OverRelianceUsers = overReliance(members)

	return ins
}

// opinionAnchors returns the top-N members whose role is leader or analyst,
// in influence order; when none qualify it falls back to the raw top-3 by
// score
func opinionAnchors(members []*influence.MemberInfluence, profiles []*profile.MemberProfile) []string {
	var anchors []*profile.MemberProfile
	for _, p := range profiles {
		if p.RoleType == profile.RoleLeader || p.RoleType == profile.RoleAnalyst {
			anchors = append(anchors, p)
		}
	}

	if len(anchors) == 0 {
		var ids []string
		for _, m := range members {
			ids = append(ids, m.UserID)
			if len(ids) == anchorFallbackCount {
				break
			}
		}
		return ids
	}

	// profiles arrive in rank order; preserve it
	ids := make([]string, 0, len(anchors))
	for _, p := range anchors {
		ids = append(ids, p.UserID)
	}
	return ids
}

// emotionAmplifiers finds members who are both loud and heard
func emotionAmplifiers(members []*influence.MemberInfluence) []string {
	var ids []string
	for _, m := range members {
		if m.EmotionalSpamCount >= amplifierMinSpam && m.CitationCount >= amplifierMinCitations {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

// echoChamberScore buckets the stance concentration across all profiles'
// views: 0 means uniform stance, 1 means diverse
func echoChamberScore(profiles []*profile.MemberProfile) float64 {
	counts := make(map[string]int)
	total := 0
	for _, p := range profiles {
		for _, v := range p.AllViews() {
			stance := strings.ToLower(strings.TrimSpace(v.Stance))
			if stance == "" {
				continue
			}
			counts[stance]++
			total++
		}
	}

	maxShare := 0.0
	if total > 0 {
		for _, c := range counts {
			share := float64(c) / float64(total)
			if share > maxShare {
				maxShare = share
			}
		}
	}

	switch {
	case maxShare > echoHighConcentration:
		return echoScoreUniform
	case maxShare > echoMidConcentration:
		return echoScoreLeaning
	default:
		return echoScoreDiverse
	}
}

// susceptibility measures how readily the group acts on forward-looking
// statements: min(1, behaviorChanges / forwardLooking / 2). With no
// forward-looking messages there is nothing to follow; 0.5 is the neutral
// reading.
func susceptibility(members []*influence.MemberInfluence) float64 {
	totalBehavior := 0
	totalForward := 0
	for _, m := range members {
		totalBehavior += m.BehaviorChangeCount
		totalForward += m.ForwardLookingCount
	}

	if totalForward == 0 {
		return 0.5
	}

	s := float64(totalBehavior) / float64(totalForward) / 2
	if s > 1 {
		s = 1
	}
	return s
}

// overReliance flags the group when its top-3 members hold more than 60% of
// the summed influence score. Needs at least 3 members to be meaningful.
func overReliance(members []*influence.MemberInfluence) (bool, []string) {
	if len(members) < overRelianceTopCount {
		return false, nil
	}

	total := 0.0
	for _, m := range members {
		total += m.InfluenceScore
	}
	if total == 0 {
		return false, nil
	}

	topSum := 0.0
	var topUsers []string
	for _, m := range members[:overRelianceTopCount] {
		topSum += m.InfluenceScore
		topUsers = append(topUsers, m.UserID)
	}

	if topSum/total > overRelianceShare {
		return true, topUsers
	}
	return false, nil
}

// Narrative requests one semantic summary of the computed insights. Purely
// additive: any failure leaves the insights without a summary.
func (a *Analyzer) Narrative(ctx context.Context, ins *profile.GroupInsights, memberCount int) (string, bool) {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	resp, err := a.llm.Chat(callCtx, ai.ChatRequest{
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: "You summarize group-level behavioral risk for a trading community in two or three sentences of plain prose."},
			{Role: ai.RoleUser, Content: a.narrativePrompt(ins, memberCount)},
		},
	})
	if err != nil {
		a.log.Warnf("Narrative call degraded: %v", err)
		return "", true
	}

	return strings.TrimSpace(resp.Content), true
}

func (a *Analyzer) narrativePrompt(ins *profile.GroupInsights, memberCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Group of %d analyzed members.\n", memberCount)
	fmt.Fprintf(&b, "Opinion anchors: %d, emotion amplifiers: %d.\n", len(ins.OpinionAnchors), len(ins.EmotionAmplifiers))
	fmt.Fprintf(&b, "Stance diversity score: %.1f (0 uniform, 1 diverse).\n", ins.EchoChamberScore)
	fmt.Fprintf(&b, "Susceptibility: %.2f.\n", ins.GroupSusceptibility)
	if ins.OverRelianceWarning {
		fmt.Fprintf(&b, "Over-reliance warning: top %d members hold most of the influence.\n", len(ins.OverRelianceUsers))
	}
	b.WriteString("Write the summary.")
	return b.String()
}
