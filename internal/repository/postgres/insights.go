package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"chatpulse/internal/domain/profile"
	pkgerrors "chatpulse/pkg/errors"
)

// Compile-time check
var _ profile.InsightsRepository = (*InsightsRepository)(nil)

// InsightsRepository implements profile.InsightsRepository using sqlx.
// One JSONB row per channel; every run replaces the previous snapshot.
type InsightsRepository struct {
	db *sqlx.DB
}

// NewInsightsRepository creates a new insights repository
func NewInsightsRepository(db *sqlx.DB) *InsightsRepository {
	return &InsightsRepository{db: db}
}

// UpsertInsights stores the channel's group insights
func (r *InsightsRepository) UpsertInsights(ctx context.Context, channelID string, insights *profile.GroupInsights) error {
	data, err := json.Marshal(insights)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to marshal insights for channel %s", channelID)
	}

	query := `
		INSERT INTO group_insights (channel_id, insights, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (channel_id) DO UPDATE SET
			insights = EXCLUDED.insights,
			updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, channelID, data); err != nil {
		return pkgerrors.Wrapf(err, "failed to upsert insights for channel %s", channelID)
	}

	return nil
}

// GetInsights returns the channel's stored insights
func (r *InsightsRepository) GetInsights(ctx context.Context, channelID string) (*profile.GroupInsights, error) {
	query := `SELECT insights FROM group_insights WHERE channel_id = $1`

	var data []byte
	err := r.db.GetContext(ctx, &data, query, channelID)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "insights not found for channel %s", channelID)
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get insights for channel %s", channelID)
	}

	var insights profile.GroupInsights
	if err := json.Unmarshal(data, &insights); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal insights for channel %s", channelID)
	}

	return &insights, nil
}
