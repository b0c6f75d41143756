package annotate

import "chatpulse/internal/domain/chat"

// BuildReplyGraph links every message to the messages that reply to it by
// appending the replier's id to the target's ReferencedBy list. Single O(n)
// pass. Replies to unknown ids (deleted or out-of-batch parents) are
// silently not linked.
func BuildReplyGraph(messages []*chat.AnnotatedMessage) {
	index := make(map[string]*chat.AnnotatedMessage, len(messages))
	for _, m := range messages {
		index[m.MessageID] = m
	}

	for _, m := range messages {
		if m.ReplyTo == "" {
			continue
		}
		target, ok := index[m.ReplyTo]
		if !ok {
			continue
		}
		target.ReferencedBy = append(target.ReferencedBy, m.MessageID)
	}
}
