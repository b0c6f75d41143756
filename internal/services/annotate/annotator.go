package annotate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"chatpulse/internal/domain/chat"
	"chatpulse/pkg/logger"
)

// Annotator turns raw chat records into annotated, timestamp-sorted messages.
// Pure given a fixed clock; the clock is only consulted for the documented
// unparsable-timestamp fallback.
type Annotator struct {
	nowFn func() time.Time
	log   *logger.Logger
}

// NewAnnotator creates an annotator using the wall clock
func NewAnnotator() *Annotator {
	return &Annotator{
		nowFn: time.Now,
		log:   logger.Get().With("component", "annotator"),
	}
}

// NewAnnotatorWithClock creates an annotator with an injected clock,
// used by deterministic tests
func NewAnnotatorWithClock(nowFn func() time.Time) *Annotator {
	return &Annotator{
		nowFn: nowFn,
		log:   logger.Get().With("component", "annotator"),
	}
}

// Annotate normalizes, filters and classifies a raw batch. Records with
// empty or whitespace-only text are dropped; missing message ids are
// synthesized from content. Output is sorted ascending by timestamp —
// all downstream windowing relies on that ordering.
func (a *Annotator) Annotate(records []chat.RawMessage) []*chat.AnnotatedMessage {
	messages := make([]*chat.AnnotatedMessage, 0, len(records))

	dropped := 0
	for _, rec := range records {
		text := strings.TrimSpace(rec.Text)
		if text == "" {
			dropped++
			continue
		}

		ts := a.parseTimestamp(rec.Timestamp)

		id := rec.MessageID
		if id == "" {
			id = synthesizeID(rec.UserID, ts, rec.Text)
		}

		messages = append(messages, &chat.AnnotatedMessage{
			MessageID: id,
			UserID:    rec.UserID,
			UserName:  rec.UserName,
			Timestamp: ts,
			Text:      rec.Text,
			ReplyTo:   rec.ReplyTo,
			Features:  classify(rec.Text),
		})
	}

	if dropped > 0 {
		a.log.Debugf("Dropped %d empty messages from batch of %d", dropped, len(records))
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})

	return messages
}

// timestampLayouts are tried in order for string timestamps
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseTimestamp normalizes the loosely-typed timestamp field. An unparsable
// value degrades to the current clock reading rather than dropping the record.
func (a *Annotator) parseTimestamp(raw interface{}) time.Time {
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts
			}
		}
		// Numeric strings occur in some exports
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return epochToTime(n)
		}
	case float64:
		return epochToTime(v)
	case int64:
		return epochToTime(float64(v))
	case int:
		return epochToTime(float64(v))
	}

	a.log.Warnf("Unparsable timestamp %v, falling back to current time", raw)
	return a.nowFn()
}

// epochToTime interprets a numeric epoch as milliseconds when it is too
// large to be seconds
func epochToTime(v float64) time.Time {
	if v > 1e12 {
		return time.UnixMilli(int64(v))
	}
	return time.Unix(int64(v), 0)
}

// synthesizeID derives a stable message id from content
func synthesizeID(userID string, ts time.Time, text string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", userID, ts.UnixNano(), text)))
	return hex.EncodeToString(h[:8])
}
