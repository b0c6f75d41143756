package chat

import "time"

// RawMessage is a single record of the input batch, exactly as exported from
// the chat transport. Timestamp accepts an RFC3339/ISO-8601 string, a numeric
// epoch (seconds or milliseconds) or a time.Time from programmatic callers.
type RawMessage struct {
	MessageID string      `json:"message_id,omitempty"`
	UserID    string      `json:"user_id"`
	UserName  string      `json:"user_name"`
	Timestamp interface{} `json:"timestamp"`
	Text      string      `json:"text"`
	ReplyTo   string      `json:"reply_to,omitempty"`
}

// DirectionType is the directional stance detected in a message
type DirectionType string

const (
	DirectionBullish DirectionType = "bullish"
	DirectionBearish DirectionType = "bearish"
)

// ActionType is the trading action detected in a message
type ActionType string

const (
	ActionBuy    ActionType = "buy"
	ActionSell   ActionType = "sell"
	ActionAdd    ActionType = "add"
	ActionReduce ActionType = "reduce"
	ActionHold   ActionType = "hold"
)

// MessageFeatures holds the behavioral flags assigned during annotation.
// Categories are independent except direction/action, which each resolve to
// at most one sub-type.
type MessageFeatures struct {
	HasDirection  bool          `json:"has_direction"`
	DirectionType DirectionType `json:"direction_type,omitempty"`
	HasAction     bool          `json:"has_action"`
	ActionType    ActionType    `json:"action_type,omitempty"`
	HasCondition  bool          `json:"has_condition"`
	IsHindsight   bool          `json:"is_hindsight"`
	IsEmotional   bool          `json:"is_emotional"`
}

// IsForwardLooking reports whether the message asserts a direction that is
// not a post-hoc remark
func (f MessageFeatures) IsForwardLooking() bool {
	return f.HasDirection && !f.IsHindsight
}

// IsActionable reports whether the message carries an executable intent
func (f MessageFeatures) IsActionable() bool {
	return f.HasAction || (f.HasDirection && f.HasCondition)
}

// AnnotatedMessage is a normalized chat message flowing through the pipeline.
// Features is set once during annotation; ReferencedBy is append-only during
// reply-graph construction. Everything else is immutable after creation.
type AnnotatedMessage struct {
	MessageID    string          `json:"message_id"`
	UserID       string          `json:"user_id"`
	UserName     string          `json:"user_name"`
	Timestamp    time.Time       `json:"timestamp"`
	Text         string          `json:"text"`
	ReplyTo      string          `json:"reply_to,omitempty"`
	Features     MessageFeatures `json:"features"`
	ReferencedBy []string        `json:"referenced_by,omitempty"`
}
