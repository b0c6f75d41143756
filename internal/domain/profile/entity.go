package profile

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ViewOutcome tracks whether a view has been resolved against the market.
// Resolution itself happens outside this pipeline; new views default to pending.
type ViewOutcome string

const (
	OutcomeValidated ViewOutcome = "validated"
	OutcomeRejected  ViewOutcome = "rejected"
	OutcomePending   ViewOutcome = "pending"
)

// RoleType classifies a member's role in the group
type RoleType string

const (
	RoleLeader     RoleType = "leader"
	RoleAnalyst    RoleType = "analyst"
	RoleFollower   RoleType = "follower"
	RoleContrarian RoleType = "contrarian"
	RoleNoise      RoleType = "noise"
)

// TradingStyle classifies how a member reasons about the market
type TradingStyle string

const (
	StyleTechnical   TradingStyle = "technical"
	StyleFundamental TradingStyle = "fundamental"
	StyleSentiment   TradingStyle = "sentiment"
	StyleMixed       TradingStyle = "mixed"
)

// ExtractedView is one directional market view extracted from a member's
// messages. Every view carries at least one basis string and at least one
// evidence message id.
type ExtractedView struct {
	ViewID           string      `json:"view_id"`
	UserID           string      `json:"user_id"`
	Stance           string      `json:"stance"`
	Target           string      `json:"target,omitempty"`
	Basis            []string    `json:"basis"`
	Conditions       []string    `json:"conditions,omitempty"`
	RiskFactors      []string    `json:"risk_factors,omitempty"`
	EvidenceMessages []string    `json:"evidence_messages"`
	Outcome          ViewOutcome `json:"outcome"`
	FirstMentioned   time.Time   `json:"first_mentioned"`
}

// NewViewID derives a deterministic view id from user, stance and target,
// so re-extracting the same view produces the same id
func NewViewID(userID, stance, target string) string {
	h := sha256.Sum256([]byte(userID + "|" + stance + "|" + target))
	return hex.EncodeToString(h[:8])
}

// MemberProfile merges a member's score breakdown with their extracted views
type MemberProfile struct {
	UserID         string       `json:"user_id"`
	UserName       string       `json:"user_name"`
	InfluenceScore float64      `json:"influence_score"`
	Rank           int          `json:"rank"`
	RoleType       RoleType     `json:"role_type"`
	TradingStyle   TradingStyle `json:"trading_style"`
	CoreBias       string       `json:"core_bias,omitempty"`
	RiskTriggers   []string     `json:"risk_triggers,omitempty"`

	ValidatedViews []ExtractedView `json:"validated_views,omitempty"`
	RejectedViews  []ExtractedView `json:"rejected_views,omitempty"`
	PendingViews   []ExtractedView `json:"pending_views,omitempty"`
}

// AccuracyRate is validated / (validated + rejected), 0 when nothing resolved
func (p *MemberProfile) AccuracyRate() float64 {
	resolved := len(p.ValidatedViews) + len(p.RejectedViews)
	if resolved == 0 {
		return 0
	}
	return float64(len(p.ValidatedViews)) / float64(resolved)
}

// AllViews returns the concatenation of the three outcome partitions
func (p *MemberProfile) AllViews() []ExtractedView {
	views := make([]ExtractedView, 0, len(p.ValidatedViews)+len(p.RejectedViews)+len(p.PendingViews))
	views = append(views, p.ValidatedViews...)
	views = append(views, p.RejectedViews...)
	views = append(views, p.PendingViews...)
	return views
}

// GroupInsights captures group-level behavioral risk metrics
type GroupInsights struct {
	OpinionAnchors      []string `json:"opinion_anchors"`
	EmotionAmplifiers   []string `json:"emotion_amplifiers"`
	GroupSusceptibility float64  `json:"group_susceptibility"`
	EchoChamberScore    float64  `json:"echo_chamber_score"`
	OverRelianceWarning bool     `json:"over_reliance_warning"`
	OverRelianceUsers   []string `json:"over_reliance_users,omitempty"`
	Summary             string   `json:"summary,omitempty"`
}
