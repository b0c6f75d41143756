package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"chatpulse/internal/domain/influence"
	pkgerrors "chatpulse/pkg/errors"
)

// Compile-time check
var _ influence.Repository = (*InfluenceRepository)(nil)

// InfluenceRepository implements influence.Repository using sqlx
type InfluenceRepository struct {
	db *sqlx.DB
}

// NewInfluenceRepository creates a new influence repository
func NewInfluenceRepository(db *sqlx.DB) *InfluenceRepository {
	return &InfluenceRepository{db: db}
}

type influenceRow struct {
	ChannelID           string    `db:"channel_id"`
	UserID              string    `db:"user_id"`
	UserName            string    `db:"user_name"`
	InfluenceScore      float64   `db:"influence_score"`
	Rank                int       `db:"rank"`
	TotalMessages       int       `db:"total_messages"`
	ForwardLookingRatio float64   `db:"forward_looking_ratio"`
	FirstMessageAt      time.Time `db:"first_message_at"`
	Breakdown           []byte    `db:"breakdown"`
	TopMessages         []byte    `db:"top_messages"`
	UpdatedAt           time.Time `db:"updated_at"`
}

// UpsertScores overwrites the channel's scores row by row. Each run fully
// recomputes the ranking, so conflicting rows are simply replaced.
func (r *InfluenceRepository) UpsertScores(ctx context.Context, channelID string, members []*influence.MemberInfluence) error {
	query := `
		INSERT INTO influence_scores (
			channel_id, user_id, user_name, influence_score, rank,
			total_messages, forward_looking_ratio, first_message_at,
			breakdown, top_messages, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW()
		)
		ON CONFLICT (channel_id, user_id) DO UPDATE SET
			user_name = EXCLUDED.user_name,
			influence_score = EXCLUDED.influence_score,
			rank = EXCLUDED.rank,
			total_messages = EXCLUDED.total_messages,
			forward_looking_ratio = EXCLUDED.forward_looking_ratio,
			first_message_at = EXCLUDED.first_message_at,
			breakdown = EXCLUDED.breakdown,
			top_messages = EXCLUDED.top_messages,
			updated_at = NOW()`

	for _, m := range members {
		breakdown, err := json.Marshal(m.Breakdown)
		if err != nil {
			return pkgerrors.Wrapf(err, "failed to marshal breakdown for user %s", m.UserID)
		}
		topMessages, err := json.Marshal(m.TopMessages)
		if err != nil {
			return pkgerrors.Wrapf(err, "failed to marshal top messages for user %s", m.UserID)
		}

		_, err = r.db.ExecContext(ctx, query,
			channelID, m.UserID, m.UserName, m.InfluenceScore, m.Rank,
			m.TotalMessages, m.ForwardLookingRatio, m.FirstMessageAt,
			breakdown, topMessages,
		)
		if err != nil {
			return pkgerrors.Wrapf(err, "failed to upsert influence score for user %s", m.UserID)
		}
	}

	return nil
}

// GetScores returns the channel's members in stored rank order
func (r *InfluenceRepository) GetScores(ctx context.Context, channelID string) ([]*influence.MemberInfluence, error) {
	query := `
		SELECT channel_id, user_id, user_name, influence_score, rank,
			total_messages, forward_looking_ratio, first_message_at,
			breakdown, top_messages, updated_at
		FROM influence_scores
		WHERE channel_id = $1
		ORDER BY rank ASC`

	var rows []influenceRow
	if err := r.db.SelectContext(ctx, &rows, query, channelID); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get influence scores for channel %s", channelID)
	}

	members := make([]*influence.MemberInfluence, 0, len(rows))
	for _, row := range rows {
		m := &influence.MemberInfluence{
			UserID:              row.UserID,
			UserName:            row.UserName,
			InfluenceScore:      row.InfluenceScore,
			Rank:                row.Rank,
			TotalMessages:       row.TotalMessages,
			ForwardLookingRatio: row.ForwardLookingRatio,
			FirstMessageAt:      row.FirstMessageAt,
		}
		if err := json.Unmarshal(row.Breakdown, &m.Breakdown); err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to unmarshal breakdown for user %s", row.UserID)
		}
		if len(row.TopMessages) > 0 {
			if err := json.Unmarshal(row.TopMessages, &m.TopMessages); err != nil {
				return nil, pkgerrors.Wrapf(err, "failed to unmarshal top messages for user %s", row.UserID)
			}
		}
		members = append(members, m)
	}

	return members, nil
}
