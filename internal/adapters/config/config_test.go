package config

import (
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	var cfg Config
	require.NoError(t, envconfig.Process("chatpulse_test_unused", &cfg))
	return &cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig(t)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10*time.Minute, cfg.Analysis.WindowSize)
	assert.Equal(t, 5, cfg.Analysis.MinWindowMessages)
	assert.Equal(t, 10, cfg.Analysis.TopN)
	assert.InDelta(t, 3.0, cfg.Analysis.WeightForwardLooking, 1e-9)
	assert.InDelta(t, 4.0, cfg.Analysis.WeightBehaviorChange, 1e-9)
}

func TestValidateRejectsNegativeWeight(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Analysis.WeightCitation = -1

	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadWindow(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Analysis.WindowSize = 0
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig(t)
	cfg.Analysis.TopN = 0
	assert.Error(t, cfg.Validate())
}

func TestInfraDisabledWithoutHosts(t *testing.T) {
	cfg := defaultConfig(t)

	assert.False(t, cfg.Postgres.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.ClickHouse.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
}

func TestConnectionStrings(t *testing.T) {
	pg := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=d sslmode=disable", pg.DSN())

	r := RedisConfig{Host: "cache", Port: 6379}
	assert.Equal(t, "cache:6379", r.Addr())
}
