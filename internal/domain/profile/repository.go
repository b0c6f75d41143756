package profile

import "context"

// Repository persists member profiles keyed by (channel_id, user_id)
type Repository interface {
	UpsertProfiles(ctx context.Context, channelID string, profiles []*MemberProfile) error
	GetProfiles(ctx context.Context, channelID string) ([]*MemberProfile, error)
}

// InsightsRepository persists group insights keyed by channel_id
type InsightsRepository interface {
	UpsertInsights(ctx context.Context, channelID string, insights *GroupInsights) error
	GetInsights(ctx context.Context, channelID string) (*GroupInsights, error)
}
