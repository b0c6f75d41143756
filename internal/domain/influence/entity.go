package influence

import (
	"time"

	"chatpulse/pkg/errors"
)

// Breakdown holds the per-user raw counts behind an influence score
type Breakdown struct {
	ForwardLookingCount int `json:"forward_looking_count"`
	CitationCount       int `json:"citation_count"`
	BehaviorChangeCount int `json:"behavior_change_count"`
	KeyEventPresence    int `json:"key_event_presence"`
	HindsightCount      int `json:"hindsight_count"`
	EmotionalSpamCount  int `json:"emotional_spam_count"`
}

// EvidenceMessage is one of the top messages kept for human review
type EvidenceMessage struct {
	MessageID string    `json:"message_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
}

// MemberInfluence is the fully scored result for one member. Recomputed from
// scratch on every run and overwritten in storage by (channel, user) key.
type MemberInfluence struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`

	Breakdown

	InfluenceScore      float64           `json:"influence_score"`
	Rank                int               `json:"rank"`
	TopMessages         []EvidenceMessage `json:"top_messages,omitempty"`
	TotalMessages       int               `json:"total_messages"`
	ForwardLookingRatio float64           `json:"forward_looking_ratio"`
	FirstMessageAt      time.Time         `json:"first_message_at"`
}

// Weights configures the influence-score formula. All weights enter the
// formula as written: penalties are subtracted, so every weight must be
// non-negative.
type Weights struct {
	ForwardLooking   float64 `json:"forward_looking"`
	Citation         float64 `json:"citation"`
	BehaviorChange   float64 `json:"behavior_change"`
	EventPresence    float64 `json:"event_presence"`
	HindsightPenalty float64 `json:"hindsight_penalty"`
	EmotionalPenalty float64 `json:"emotional_penalty"`
}

// DefaultWeights returns the documented default weight set
func DefaultWeights() Weights {
	return Weights{
		ForwardLooking:   3.0,
		Citation:         2.0,
		BehaviorChange:   4.0,
		EventPresence:    2.5,
		HindsightPenalty: 1.5,
		EmotionalPenalty: 0.5,
	}
}

// Validate rejects negative weights
func (w Weights) Validate() error {
	fields := map[string]float64{
		"forward_looking":   w.ForwardLooking,
		"citation":          w.Citation,
		"behavior_change":   w.BehaviorChange,
		"event_presence":    w.EventPresence,
		"hindsight_penalty": w.HindsightPenalty,
		"emotional_penalty": w.EmotionalPenalty,
	}
	for name, v := range fields {
		if v < 0 {
			return errors.NewValidationError(name, "must be non-negative", v)
		}
	}
	return nil
}
