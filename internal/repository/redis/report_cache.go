package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chatpulse/pkg/errors"
)

// ReportCache stores the latest rendered report per channel with a TTL,
// so repeated report reads skip the full pipeline run
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache creates a new report cache
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a cached report for a channel
func (c *ReportCache) Get(ctx context.Context, channelID string) (string, error) {
	report, err := c.client.Get(ctx, c.key(channelID)).Result()
	if err == redis.Nil {
		return "", errors.Wrapf(errors.ErrNotFound, "report not cached for channel %s", channelID)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to get report from redis: channel=%s", channelID)
	}

	return report, nil
}

// Save stores a report with the configured TTL
func (c *ReportCache) Save(ctx context.Context, channelID, report string) error {
	if err := c.client.Set(ctx, c.key(channelID), report, c.ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to save report to redis: channel=%s", channelID)
	}
	return nil
}

// Delete invalidates a cached report
func (c *ReportCache) Delete(ctx context.Context, channelID string) error {
	if err := c.client.Del(ctx, c.key(channelID)).Err(); err != nil {
		return errors.Wrapf(err, "failed to delete report from redis: channel=%s", channelID)
	}
	return nil
}

func (c *ReportCache) key(channelID string) string {
	return fmt.Sprintf("report:%s", channelID)
}
