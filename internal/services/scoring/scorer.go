package scoring

import (
	"sort"
	"time"

	"chatpulse/internal/domain/chat"
	"chatpulse/internal/domain/influence"
	"chatpulse/internal/domain/market"
	"chatpulse/pkg/logger"
)

const (
	emotionalSpamWindow  = 5 * time.Minute
	emotionalSpamMin     = 3
	behaviorChangeWindow = 10 * time.Minute
	topMessagesLimit     = 5
)

// Scorer computes the weighted influence score for every distinct user.
// Pure and deterministic: fixed input and weights always yield identical
// scores and ranks.
type Scorer struct {
	weights influence.Weights
	log     *logger.Logger
}

// NewScorer creates a scorer with the given weights
func NewScorer(weights influence.Weights) *Scorer {
	return &Scorer{
		weights: weights,
		log:     logger.Get().With("component", "scorer"),
	}
}

// Score computes per-user influence over a sorted, reply-linked message
// batch and the events detected from it. The returned slice is ranked:
// descending score, ties broken by earliest first message, then user id.
func (s *Scorer) Score(messages []*chat.AnnotatedMessage, events []*market.Event) []*influence.MemberInfluence {
	if len(messages) == 0 {
		return nil
	}

	byUser := groupByUser(messages)

	members := make([]*influence.MemberInfluence, 0, len(byUser))
	for userID, userMsgs := range byUser {
		m := &influence.MemberInfluence{
			UserID:         userID,
			UserName:       userMsgs[0].UserName,
			TotalMessages:  len(userMsgs),
			FirstMessageAt: userMsgs[0].Timestamp,
		}

		for _, msg := range userMsgs {
			if msg.Features.IsForwardLooking() {
				m.ForwardLookingCount++
			}
			if msg.Features.IsHindsight {
				m.HindsightCount++
			}
			m.CitationCount += len(msg.ReferencedBy)
		}

		m.EmotionalSpamCount = emotionalSpamIncidents(userMsgs)
		m.BehaviorChangeCount = behaviorChanges(messages, userMsgs, userID)
		m.KeyEventPresence = eventPresence(events, userMsgs)

		if m.TotalMessages > 0 {
			m.ForwardLookingRatio = float64(m.ForwardLookingCount) / float64(m.TotalMessages)
		}

		m.InfluenceScore = s.weights.ForwardLooking*float64(m.ForwardLookingCount) +
			s.weights.Citation*float64(m.CitationCount) +
			s.weights.BehaviorChange*float64(m.BehaviorChangeCount) +
			s.weights.EventPresence*float64(m.KeyEventPresence) -
			s.weights.HindsightPenalty*float64(m.HindsightCount) -
			s.weights.EmotionalPenalty*float64(m.EmotionalSpamCount)
		if m.InfluenceScore < 0 {
			m.InfluenceScore = 0
		}

		m.TopMessages = topMessages(userMsgs)

		members = append(members, m)
	}

	sort.Slice(members, func(i, j int) bool {
		a, b := members[i], members[j]
		if a.InfluenceScore != b.InfluenceScore {
			return a.InfluenceScore > b.InfluenceScore
		}
		if !a.FirstMessageAt.Equal(b.FirstMessageAt) {
			return a.FirstMessageAt.Before(b.FirstMessageAt)
		}
		return a.UserID < b.UserID
	})
	for i, m := range members {
		m.Rank = i + 1
	}

	s.log.Debugf("Scored %d members over %d messages and %d events", len(members), len(messages), len(events))
	return members
}

// groupByUser preserves the input's chronological order within each group
func groupByUser(messages []*chat.AnnotatedMessage) map[string][]*chat.AnnotatedMessage {
	byUser := make(map[string][]*chat.AnnotatedMessage)
	for _, m := range messages {
		byUser[m.UserID] = append(byUser[m.UserID], m)
	}
	return byUser
}

// emotionalSpamIncidents counts, over the user's emotional messages only,
// one incident per message whose trailing 5-minute window holds at least two
// other emotional messages. Two-pointer scan: a long emotional streak is
// penalized per message in a crowded window, not per window pair, which keeps
// the penalty roughly linear in streak length instead of quadratic.
func emotionalSpamIncidents(userMsgs []*chat.AnnotatedMessage) int {
	var stamps []time.Time
	for _, m := range userMsgs {
		if m.Features.IsEmotional {
			stamps = append(stamps, m.Timestamp)
		}
	}
	if len(stamps) < emotionalSpamMin {
		return 0
	}

	incidents := 0
	left := 0
	for i := range stamps {
		for stamps[i].Sub(stamps[left]) > emotionalSpamWindow {
			left++
		}
		if i-left+1 >= emotionalSpamMin {
			incidents++
		}
	}
	return incidents
}

// behaviorChanges counts, for each of the user's forward-looking messages,
// the distinct other users who posted an action message strictly after it
// and within the reaction window. A user acting twice after the same trigger
// counts once; the same user reacting to two triggers counts once per trigger.
func behaviorChanges(all, userMsgs []*chat.AnnotatedMessage, userID string) int {
	total := 0
	for _, trigger := range userMsgs {
		if !trigger.Features.IsForwardLooking() {
			continue
		}

		deadline := trigger.Timestamp.Add(behaviorChangeWindow)
		reacted := make(map[string]struct{})

		// all is sorted; find the first message after the trigger time
		start := sort.Search(len(all), func(i int) bool {
			return all[i].Timestamp.After(trigger.Timestamp)
		})
		for _, m := range all[start:] {
			if m.Timestamp.After(deadline) {
				break
			}
			if m.UserID == userID || !m.Features.HasAction {
				continue
			}
			reacted[m.UserID] = struct{}{}
		}

		total += len(reacted)
	}
	return total
}

// eventPresence counts the events whose related messages intersect the
// user's message ids
func eventPresence(events []*market.Event, userMsgs []*chat.AnnotatedMessage) int {
	if len(events) == 0 {
		return 0
	}

	owned := make(map[string]struct{}, len(userMsgs))
	for _, m := range userMsgs {
		owned[m.MessageID] = struct{}{}
	}

	count := 0
	for _, ev := range events {
		for _, id := range ev.RelatedMessages {
			if _, ok := owned[id]; ok {
				count++
				break
			}
		}
	}
	return count
}

// topMessages picks up to five evidence messages by a local heuristic.
// This score exists purely for human review and never feeds the influence
// score itself.
func topMessages(userMsgs []*chat.AnnotatedMessage) []influence.EvidenceMessage {
	scored := make([]influence.EvidenceMessage, 0, len(userMsgs))
	for _, m := range userMsgs {
		score := 0.0
		if m.Features.IsForwardLooking() {
			score += 3
		}
		if m.Features.HasAction {
			score += 2
		}
		if m.Features.HasCondition {
			score += 2
		}
		score += 2 * float64(len(m.ReferencedBy))
		if m.Features.IsHindsight {
			score -= 2
		}
		if m.Features.IsEmotional {
			score -= 1
		}

		scored = append(scored, influence.EvidenceMessage{
			MessageID: m.MessageID,
			Text:      m.Text,
			Timestamp: m.Timestamp,
			Score:     score,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Timestamp.Before(scored[j].Timestamp)
	})

	if len(scored) > topMessagesLimit {
		scored = scored[:topMessagesLimit]
	}
	return scored
}
