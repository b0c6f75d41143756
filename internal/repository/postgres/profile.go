package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"chatpulse/internal/domain/profile"
	pkgerrors "chatpulse/pkg/errors"
)

// Compile-time check
var _ profile.Repository = (*ProfileRepository)(nil)

// ProfileRepository implements profile.Repository using sqlx
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

type profileRow struct {
	ChannelID      string    `db:"channel_id"`
	UserID         string    `db:"user_id"`
	UserName       string    `db:"user_name"`
	InfluenceScore float64   `db:"influence_score"`
	Rank           int       `db:"rank"`
	RoleType       string    `db:"role_type"`
	TradingStyle   string    `db:"trading_style"`
	CoreBias       string    `db:"core_bias"`
	RiskTriggers   []byte    `db:"risk_triggers"`
	Views          []byte    `db:"views"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// viewsDoc keeps the outcome partitions together in one JSONB column.
// Views move between partitions as outcomes resolve; splitting them across
// columns would turn every resolution into a three-column update.
type viewsDoc struct {
	Validated []profile.ExtractedView `json:"validated,omitempty"`
	Rejected  []profile.ExtractedView `json:"rejected,omitempty"`
	Pending   []profile.ExtractedView `json:"pending,omitempty"`
}

// UpsertProfiles overwrites the channel's profiles keyed by (channel, user)
func (r *ProfileRepository) UpsertProfiles(ctx context.Context, channelID string, profiles []*profile.MemberProfile) error {
	query := `
		INSERT INTO member_profiles (
			channel_id, user_id, user_name, influence_score, rank,
			role_type, trading_style, core_bias, risk_triggers, views, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW()
		)
		ON CONFLICT (channel_id, user_id) DO UPDATE SET
			user_name = EXCLUDED.user_name,
			influence_score = EXCLUDED.influence_score,
			rank = EXCLUDED.rank,
			role_type = EXCLUDED.role_type,
			trading_style = EXCLUDED.trading_style,
			core_bias = EXCLUDED.core_bias,
			risk_triggers = EXCLUDED.risk_triggers,
			views = EXCLUDED.views,
			updated_at = NOW()`

	for _, p := range profiles {
		triggers, err := json.Marshal(p.RiskTriggers)
		if err != nil {
			return pkgerrors.Wrapf(err, "failed to marshal risk triggers for user %s", p.UserID)
		}
		views, err := json.Marshal(viewsDoc{
			Validated: p.ValidatedViews,
			Rejected:  p.RejectedViews,
			Pending:   p.PendingViews,
		})
		if err != nil {
			return pkgerrors.Wrapf(err, "failed to marshal views for user %s", p.UserID)
		}

		_, err = r.db.ExecContext(ctx, query,
			channelID, p.UserID, p.UserName, p.InfluenceScore, p.Rank,
			string(p.RoleType), string(p.TradingStyle), p.CoreBias,
			triggers, views,
		)
		if err != nil {
			return pkgerrors.Wrapf(err, "failed to upsert profile for user %s", p.UserID)
		}
	}

	return nil
}

// GetProfiles returns the channel's profiles in stored rank order
func (r *ProfileRepository) GetProfiles(ctx context.Context, channelID string) ([]*profile.MemberProfile, error) {
	query := `
		SELECT channel_id, user_id, user_name, influence_score, rank,
			role_type, trading_style, core_bias, risk_triggers, views, updated_at
		FROM member_profiles
		WHERE channel_id = $1
		ORDER BY rank ASC`

	var rows []profileRow
	if err := r.db.SelectContext(ctx, &rows, query, channelID); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get profiles for channel %s", channelID)
	}

	profiles := make([]*profile.MemberProfile, 0, len(rows))
	for _, row := range rows {
		p := &profile.MemberProfile{
			UserID:         row.UserID,
			UserName:       row.UserName,
			InfluenceScore: row.InfluenceScore,
			Rank:           row.Rank,
			RoleType:       profile.RoleType(row.RoleType),
			TradingStyle:   profile.TradingStyle(row.TradingStyle),
			CoreBias:       row.CoreBias,
		}
		if len(row.RiskTriggers) > 0 {
			if err := json.Unmarshal(row.RiskTriggers, &p.RiskTriggers); err != nil {
				return nil, pkgerrors.Wrapf(err, "failed to unmarshal risk triggers for user %s", row.UserID)
			}
		}
		if len(row.Views) > 0 {
			var doc viewsDoc
			if err := json.Unmarshal(row.Views, &doc); err != nil {
				return nil, pkgerrors.Wrapf(err, "failed to unmarshal views for user %s", row.UserID)
			}
			p.ValidatedViews = doc.Validated
			p.RejectedViews = doc.Rejected
			p.PendingViews = doc.Pending
		}
		profiles = append(profiles, p)
	}

	return profiles, nil
}
