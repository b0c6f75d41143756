package clickhouse

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"chatpulse/internal/domain/market"
	pkgerrors "chatpulse/pkg/errors"
)

// Compile-time check
var _ market.Archive = (*EventArchive)(nil)

// EventArchive implements market.Archive using ClickHouse. Append-only:
// every run archives its detected events for offline threshold backtesting.
type EventArchive struct {
	conn driver.Conn
}

// NewEventArchive creates a new event archive
func NewEventArchive(conn driver.Conn) *EventArchive {
	return &EventArchive{conn: conn}
}

// InsertEvents batch-inserts detected events for a channel
func (r *EventArchive) InsertEvents(ctx context.Context, channelID string, events []*market.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO market_events (
			channel_id, event_id, event_type, start_time, end_time,
			intensity, related_messages
		)`)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to prepare event batch")
	}

	for _, ev := range events {
		err := batch.Append(
			channelID, ev.EventID, string(ev.Type), ev.Start, ev.End,
			ev.Intensity, ev.RelatedMessages,
		)
		if err != nil {
			return pkgerrors.Wrapf(err, "failed to append event %s", ev.EventID)
		}
	}

	return batch.Send()
}
