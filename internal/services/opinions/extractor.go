package opinions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"chatpulse/internal/adapters/ai"
	"chatpulse/internal/domain/chat"
	"chatpulse/internal/domain/profile"
	"chatpulse/pkg/errors"
	"chatpulse/pkg/logger"
)

// Config bounds the excerpt sent to the extraction capability
type Config struct {
	Model           string
	MaxMessages     int // most recent forward-looking messages kept (default 50)
	MaxMessageChars int // per-message truncation (default 200)
	Temperature     float64
	MaxTokens       int
	Timeout         time.Duration
}

func (c *Config) defaults() {
	if c.MaxMessages <= 0 {
		c.MaxMessages = 50
	}
	if c.MaxMessageChars <= 0 {
		c.MaxMessageChars = 200
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Result is the outcome of one extraction call for one user
type Result struct {
	Views        []profile.ExtractedView
	TradingStyle profile.TradingStyle
	CoreBias     string
}

// Extractor turns a user's forward-looking messages into typed views via a
// single bounded call to the semantic-extraction capability
type Extractor struct {
	llm ai.ChatProvider
	cfg Config
	log *logger.Logger
}

// NewExtractor creates an extractor bound to a chat provider
func NewExtractor(llm ai.ChatProvider, cfg Config) *Extractor {
	cfg.defaults()
	return &Extractor{
		llm: llm,
		cfg: cfg,
		log: logger.Get().With("component", "opinion_extractor"),
	}
}

// extractionPayload is the JSON contract the capability must return
type extractionPayload struct {
	Views []struct {
		Stance         string   `json:"stance"`
		Target         string   `json:"target"`
		Basis          []string `json:"basis"`
		Conditions     []string `json:"conditions"`
		RiskFactors    []string `json:"risk_factors"`
		MessageIndices []int    `json:"message_indices"`
	} `json:"views"`
	TradingStyle string `json:"trading_style"`
	CoreBias     string `json:"core_bias"`
}

// Extract issues exactly one extraction call for the given user. The message
// slice is the user's messages in chronological order; only forward-looking
// ones are sent. A failed or unparsable call returns an error; the caller
// degrades that user to an empty view list.
func (e *Extractor) Extract(ctx context.Context, userID, userName string, userMsgs []*chat.AnnotatedMessage) (*Result, error) {
	batch := e.promptBatch(userMsgs)
	if len(batch) == 0 {
		return &Result{}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	resp, err := e.llm.Chat(callCtx, ai.ChatRequest{
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: extractionSystemPrompt},
			{Role: ai.RoleUser, Content: e.buildPrompt(userName, batch)},
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "extraction call for user %s", userID)
	}

	payload, err := parseExtraction(resp.Content)
	if err != nil {
		return nil, errors.Wrapf(err, "parse extraction for user %s", userID)
	}

	return e.toResult(userID, payload, batch), nil
}

// promptBatch filters to forward-looking messages, keeps the most recent
// MaxMessages preserving oldest-first order, and truncates each text
func (e *Extractor) promptBatch(userMsgs []*chat.AnnotatedMessage) []*chat.AnnotatedMessage {
	var fwd []*chat.AnnotatedMessage
	for _, m := range userMsgs {
		if m.Features.IsForwardLooking() {
			fwd = append(fwd, m)
		}
	}
	if len(fwd) > e.cfg.MaxMessages {
		fwd = fwd[len(fwd)-e.cfg.MaxMessages:]
	}
	return fwd
}

func (e *Extractor) truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= e.cfg.MaxMessageChars {
		return text
	}
	return string(runes[:e.cfg.MaxMessageChars])
}

const extractionSystemPrompt = `You are an analyst extracting directional market views from trading-group chat messages. Respond with a single JSON object and nothing else.`

func (e *Extractor) buildPrompt(userName string, batch []*chat.AnnotatedMessage) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Messages from %s, oldest first, indexed from 0:\n\n", userName)
	for i, m := range batch {
		fmt.Fprintf(&b, "[%d] %s | %s\n", i, m.Timestamp.Format("2006-01-02 15:04"), e.truncate(m.Text))
	}

	b.WriteString(`
Extract this user's market views. Return JSON:
{
  "views": [
    {
      "stance": "bullish|bearish|neutral",
      "target": "instrument or sector, empty if unclear",
      "basis": ["reason the user gives"],
      "conditions": ["conditions attached to the view"],
      "risk_factors": ["risks the user mentions"],
      "message_indices": [0]
    }
  ],
  "trading_style": "technical|fundamental|sentiment|mixed",
  "core_bias": "one sentence on the user's persistent bias"
}
Only include views the messages support. A view without any basis is useless; omit it.`)

	return b.String()
}

// parseExtraction decodes the capability's free-text response. Malformed
// JSON is a data condition, not an exceptional one: it yields an error the
// caller converts to an empty result.
func parseExtraction(content string) (*extractionPayload, error) {
	block := ExtractJSONBlock(content)
	if block == "" {
		return nil, errors.Wrap(errors.ErrEmptyResponse, "no JSON payload found")
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(StripTrailingCommas(block)), &payload); err != nil {
		return nil, errors.Wrap(errors.ErrEmptyResponse, err.Error())
	}
	return &payload, nil
}

// toResult converts the wire payload into validated domain views.
// message_indices are resolved against the prompt batch; invalid indices are
// ignored and a view with no resolvable evidence falls back to the batch's
// earliest message.
func (e *Extractor) toResult(userID string, payload *extractionPayload, batch []*chat.AnnotatedMessage) *Result {
	result := &Result{
		TradingStyle: parseStyle(payload.TradingStyle),
		CoreBias:     payload.CoreBias,
	}

	for _, v := range payload.Views {
		if len(v.Basis) == 0 {
			continue
		}

		var evidence []string
		firstMentioned := time.Time{}
		for _, idx := range v.MessageIndices {
			if idx < 0 || idx >= len(batch) {
				continue
			}
			evidence = append(evidence, batch[idx].MessageID)
			if firstMentioned.IsZero() || batch[idx].Timestamp.Before(firstMentioned) {
				firstMentioned = batch[idx].Timestamp
			}
		}
		if len(evidence) == 0 {
			evidence = []string{batch[0].MessageID}
			firstMentioned = batch[0].Timestamp
		}

		result.Views = append(result.Views, profile.ExtractedView{
			ViewID:           profile.NewViewID(userID, v.Stance, v.Target),
			UserID:           userID,
			Stance:           v.Stance,
			Target:           v.Target,
			Basis:            v.Basis,
			Conditions:       v.Conditions,
			RiskFactors:      v.RiskFactors,
			EvidenceMessages: evidence,
			Outcome:          profile.OutcomePending,
			FirstMentioned:   firstMentioned,
		})
	}

	return result
}

// parseStyle maps free-text style onto the enum, defaulting to mixed
func parseStyle(s string) profile.TradingStyle {
	switch profile.TradingStyle(strings.ToLower(strings.TrimSpace(s))) {
	case profile.StyleTechnical:
		return profile.StyleTechnical
	case profile.StyleFundamental:
		return profile.StyleFundamental
	case profile.StyleSentiment:
		return profile.StyleSentiment
	case profile.StyleMixed:
		return profile.StyleMixed
	default:
		return profile.StyleMixed
	}
}
