package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"chatpulse/internal/adapters/ai"
	"chatpulse/internal/domain/influence"
	"chatpulse/internal/domain/profile"
	"chatpulse/internal/services/opinions"
	"chatpulse/pkg/logger"
)

const maxDigestViews = 10

// Rule-based role thresholds, used when the semantic call degrades
const (
	leaderMinCitations = 5
	leaderMinBehavior  = 3
	analystMinFwdRatio = 0.3
	noiseMinSpam       = 2
)

// Config holds the profile builder's LLM parameters
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Builder merges a member's score breakdown and extracted views into a
// profile. Role/style/bias come from one semantic call with a rule-based
// fallback, so a dead LLM still produces a complete profile.
type Builder struct {
	llm ai.ChatProvider
	cfg Config
	log *logger.Logger
}

// NewBuilder creates a profile builder
func NewBuilder(llm ai.ChatProvider, cfg Config) *Builder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Builder{
		llm: llm,
		cfg: cfg,
		log: logger.Get().With("component", "profile_builder"),
	}
}

// profilePayload is the JSON contract for the role classification call
type profilePayload struct {
	RoleType     string   `json:"role_type"`
	TradingStyle string   `json:"trading_style"`
	CoreBias     string   `json:"core_bias"`
	RiskTriggers []string `json:"risk_triggers"`
}

// Build creates the profile for one member using one semantic call.
// ext may be nil or empty when extraction degraded for this user.
// Returns the profile and whether an LLM call was actually issued.
func (b *Builder) Build(ctx context.Context, member *influence.MemberInfluence, ext *opinions.Result) (*profile.MemberProfile, bool) {
	p := b.base(member, ext)

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	resp, err := b.llm.Chat(callCtx, ai.ChatRequest{
		Model:       b.cfg.Model,
		Temperature: b.cfg.Temperature,
		MaxTokens:   b.cfg.MaxTokens,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: profileSystemPrompt},
			{Role: ai.RoleUser, Content: b.buildPrompt(member, ext)},
		},
	})
	if err != nil {
		b.log.Warnf("Profile call degraded for user %s: %v", member.UserID, err)
		b.applyFallback(p, member, ext)
		return p, true
	}

	payload, perr := parseProfile(resp.Content)
	if perr != nil {
		b.log.Warnf("Profile response unparsable for user %s: %v", member.UserID, perr)
		b.applyFallback(p, member, ext)
		return p, true
	}

	p.RoleType = parseRole(payload.RoleType)
	if p.RoleType == "" {
		p.RoleType = classifyRole(member)
	}
	p.TradingStyle = parseStyle(payload.TradingStyle)
	if payload.CoreBias != "" {
		p.CoreBias = payload.CoreBias
	}
	p.RiskTriggers = payload.RiskTriggers

	return p, true
}

// BuildFallback creates a fully rule-based profile without any external
// call. Used in skip-LLM mode.
func (b *Builder) BuildFallback(member *influence.MemberInfluence, ext *opinions.Result) *profile.MemberProfile {
	p := b.base(member, ext)
	b.applyFallback(p, member, ext)
	return p
}

// base assembles the deterministic parts: identity, score and the
// outcome-partitioned view lists
func (b *Builder) base(member *influence.MemberInfluence, ext *opinions.Result) *profile.MemberProfile {
	p := &profile.MemberProfile{
		UserID:         member.UserID,
		UserName:       member.UserName,
		InfluenceScore: member.InfluenceScore,
		Rank:           member.Rank,
	}

	if ext != nil {
		for _, v := range ext.Views {
			switch v.Outcome {
			case profile.OutcomeValidated:
				p.ValidatedViews = append(p.ValidatedViews, v)
			case profile.OutcomeRejected:
				p.RejectedViews = append(p.RejectedViews, v)
			default:
				p.PendingViews = append(p.PendingViews, v)
			}
		}
	}

	return p
}

// applyFallback fills role/style/bias without the semantic call
func (b *Builder) applyFallback(p *profile.MemberProfile, member *influence.MemberInfluence, ext *opinions.Result) {
	p.RoleType = classifyRole(member)
	p.TradingStyle = profile.StyleMixed
	if ext != nil {
		if ext.TradingStyle != "" {
			p.TradingStyle = ext.TradingStyle
		}
		p.CoreBias = ext.CoreBias
	}
}

// classifyRole is the rule-based role classifier
func classifyRole(m *influence.MemberInfluence) profile.RoleType {
	switch {
	case m.CitationCount >= leaderMinCitations && m.BehaviorChangeCount >= leaderMinBehavior:
		return profile.RoleLeader
	case m.ForwardLookingRatio >= analystMinFwdRatio && m.EmotionalSpamCount == 0:
		return profile.RoleAnalyst
	case m.EmotionalSpamCount >= noiseMinSpam || m.HindsightCount > m.ForwardLookingCount:
		return profile.RoleNoise
	default:
		return profile.RoleFollower
	}
}

const profileSystemPrompt = `You classify trading-group members from their activity statistics and extracted market views. Respond with a single JSON object and nothing else.`

func (b *Builder) buildPrompt(member *influence.MemberInfluence, ext *opinions.Result) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Member %s (rank %d, influence score %.1f):\n", member.UserName, member.Rank, member.InfluenceScore)
	fmt.Fprintf(&sb, "- forward-looking messages: %d of %d total (%.0f%%)\n",
		member.ForwardLookingCount, member.TotalMessages, member.ForwardLookingRatio*100)
	fmt.Fprintf(&sb, "- replies received: %d\n", member.CitationCount)
	fmt.Fprintf(&sb, "- behavior changes triggered: %d\n", member.BehaviorChangeCount)
	fmt.Fprintf(&sb, "- key market events present: %d\n", member.KeyEventPresence)
	fmt.Fprintf(&sb, "- hindsight remarks: %d, emotional spam incidents: %d\n",
		member.HindsightCount, member.EmotionalSpamCount)

	if ext != nil && len(ext.Views) > 0 {
		sb.WriteString("\nExtracted views:\n")
		views := ext.Views
		if len(views) > maxDigestViews {
			views = views[:maxDigestViews]
		}
		for _, v := range views {
			fmt.Fprintf(&sb, "- %s on %s: %s\n", v.Stance, orUnknown(v.Target), strings.Join(v.Basis, "; "))
		}
	}

	sb.WriteString(`
Classify this member. Return JSON:
{
  "role_type": "leader|analyst|follower|contrarian|noise",
  "trading_style": "technical|fundamental|sentiment|mixed",
  "core_bias": "one sentence",
  "risk_triggers": ["situations where this member misleads the group"]
}`)

	return sb.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unspecified target"
	}
	return s
}

func parseProfile(content string) (*profilePayload, error) {
	block := opinions.ExtractJSONBlock(content)
	if block == "" {
		return nil, fmt.Errorf("no JSON payload found")
	}
	var payload profilePayload
	if err := json.Unmarshal([]byte(opinions.StripTrailingCommas(block)), &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// parseRole maps free text onto the role enum; "" means unmappable
func parseRole(s string) profile.RoleType {
	switch profile.RoleType(strings.ToLower(strings.TrimSpace(s))) {
	case profile.RoleLeader:
		return profile.RoleLeader
	case profile.RoleAnalyst:
		return profile.RoleAnalyst
	case profile.RoleFollower:
		return profile.RoleFollower
	case profile.RoleContrarian:
		return profile.RoleContrarian
	case profile.RoleNoise:
		return profile.RoleNoise
	default:
		return ""
	}
}

func parseStyle(s string) profile.TradingStyle {
	switch profile.TradingStyle(strings.ToLower(strings.TrimSpace(s))) {
	case profile.StyleTechnical:
		return profile.StyleTechnical
	case profile.StyleFundamental:
		return profile.StyleFundamental
	case profile.StyleSentiment:
		return profile.StyleSentiment
	default:
		return profile.StyleMixed
	}
}
