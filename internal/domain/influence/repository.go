package influence

import "context"

// Repository persists influence scores keyed by (channel_id, user_id).
// Upserts are idempotent; a new run fully overwrites the previous one.
type Repository interface {
	UpsertScores(ctx context.Context, channelID string, members []*MemberInfluence) error
	GetScores(ctx context.Context, channelID string) ([]*MemberInfluence, error)
}
