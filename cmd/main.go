package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"chatpulse/internal/adapters/ai"
	"chatpulse/internal/adapters/clickhouse"
	"chatpulse/internal/adapters/config"
	"chatpulse/internal/adapters/errors/noop"
	"chatpulse/internal/adapters/errors/sentry"
	"chatpulse/internal/adapters/kafka"
	"chatpulse/internal/adapters/postgres"
	"chatpulse/internal/adapters/redis"
	"chatpulse/internal/domain/chat"
	"chatpulse/internal/events"
	"chatpulse/internal/metrics"
	chrepo "chatpulse/internal/repository/clickhouse"
	pgrepo "chatpulse/internal/repository/postgres"
	redisrepo "chatpulse/internal/repository/redis"
	"chatpulse/internal/services/analyzer"
	"chatpulse/pkg/errors"
	"chatpulse/pkg/logger"
)

func main() {
	var (
		inputPath   = flag.String("input", "", "path to the exported message batch (JSON array)")
		channelID   = flag.String("channel", "", "channel id the batch belongs to")
		channelName = flag.String("name", "", "display name for the report header")
		topN        = flag.Int("top", 0, "profile the top N members (0 = configured default)")
		skipLLM     = flag.Bool("skip-llm", false, "run deterministic stages only, no LLM calls")
		fromStore   = flag.Bool("from-store", false, "print the stored report for the channel instead of analyzing")
	)
	flag.Parse()

	if *channelID == "" || (*inputPath == "" && !*fromStore) {
		fmt.Fprintln(os.Stderr, "usage: chatpulse -input messages.json -channel <id> [-name <display name>] [-top N] [-skip-llm] [-from-store]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Init()
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Addr); err != nil {
				log.Errorf("Metrics server stopped: %v", err)
			}
		}()
	}

	ctx := context.Background()

	if *fromStore {
		if err := printStoredReport(ctx, cfg, *channelID, *channelName, log); err != nil {
			log.Fatalf("Failed to load stored report: %v", err)
		}
		return
	}

	messages, err := loadMessages(*inputPath)
	if err != nil {
		log.Fatalf("Failed to load messages: %v", err)
	}

	storage, publisher, closeAll := initInfrastructure(cfg, log)
	defer closeAll()

	service := analyzer.NewService(initLLM(cfg, *skipLLM, log), cfg.AI, cfg.Analysis, storage, publisher)

	result, err := service.Analyze(ctx, analyzer.Request{
		ChannelID:   *channelID,
		ChannelName: *channelName,
		Messages:    messages,
		TopN:        *topN,
		SkipLLM:     *skipLLM,
	})
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	fmt.Println(result.Report)

	if err := errorTracker.Flush(ctx); err != nil {
		log.Warnf("Failed to flush error tracker: %v", err)
	}
}

// loadMessages reads the exported batch from disk
func loadMessages(path string) ([]chat.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	var messages []chat.RawMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}

	return messages, nil
}

// printStoredReport serves a previous run from storage: the cached render
// when Redis has it, otherwise rebuilt from the PostgreSQL records
func printStoredReport(ctx context.Context, cfg *config.Config, channelID, channelName string, log *logger.Logger) error {
	if cfg.Redis.Enabled() {
		redisClient, err := redis.NewClient(cfg.Redis)
		if err != nil {
			log.Warnf("Failed to connect to Redis: %v", err)
		} else {
			defer redisClient.Close()
			cache := redisrepo.NewReportCache(redisClient.Client(), cfg.Redis.ReportTTL)
			report, err := cache.Get(ctx, channelID)
			if err == nil {
				fmt.Println(report)
				return nil
			}
			if !errors.Is(err, errors.ErrNotFound) {
				log.Warnf("Report cache lookup failed: %v", err)
			}
		}
	}

	if !cfg.Postgres.Enabled() {
		return errors.Wrapf(errors.ErrNotFound, "no cached report for channel %s and no PostgreSQL configured", channelID)
	}

	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		return errors.Wrap(err, "failed to connect to PostgreSQL")
	}
	defer pgClient.Close()

	members, err := pgrepo.NewInfluenceRepository(pgClient.DB()).GetScores(ctx, channelID)
	if err != nil {
		return errors.Wrap(err, "failed to load influence scores")
	}
	if len(members) == 0 {
		return errors.Wrapf(errors.ErrNotFound, "no stored analysis for channel %s", channelID)
	}

	profiles, err := pgrepo.NewProfileRepository(pgClient.DB()).GetProfiles(ctx, channelID)
	if err != nil {
		log.Warnf("Failed to load profiles: %v", err)
	}
	insights, err := pgrepo.NewInsightsRepository(pgClient.DB()).GetInsights(ctx, channelID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		log.Warnf("Failed to load insights: %v", err)
	}

	result := &analyzer.Result{
		ChannelID: channelID,
		Members:   members,
		Profiles:  profiles,
		Insights:  insights,
	}
	fmt.Println(analyzer.BuildReport(channelName, result))
	return nil
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// initLLM wires the chat provider. Without an API key (or with -skip-llm)
// the pipeline degrades to rule-based profiles.
func initLLM(cfg *config.Config, skipLLM bool, log *logger.Logger) ai.ChatProvider {
	if skipLLM {
		log.Info("LLM disabled by flag")
		return ai.NewNoopProvider()
	}
	if cfg.AI.APIKey == "" {
		log.Warn("AI_API_KEY not set, profiles will be rule-based")
		return ai.NewNoopProvider()
	}
	return ai.NewOpenAIProvider(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Timeout, cfg.AI.RequestsPerMinute)
}

// initInfrastructure connects every configured backend. All are optional:
// a missing host simply disables that backend.
func initInfrastructure(cfg *config.Config, log *logger.Logger) (analyzer.Storage, *events.Publisher, func()) {
	var storage analyzer.Storage
	var publisher *events.Publisher
	var closers []func()

	if cfg.Postgres.Enabled() {
		pgClient, err := postgres.NewClient(cfg.Postgres)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		closers = append(closers, func() { pgClient.Close() })
		storage.Influence = pgrepo.NewInfluenceRepository(pgClient.DB())
		storage.Profiles = pgrepo.NewProfileRepository(pgClient.DB())
		storage.Insights = pgrepo.NewInsightsRepository(pgClient.DB())
		log.Info("PostgreSQL persistence enabled")
	}

	if cfg.ClickHouse.Enabled() {
		chClient, err := clickhouse.NewClient(cfg.ClickHouse)
		if err != nil {
			log.Fatalf("Failed to connect to ClickHouse: %v", err)
		}
		closers = append(closers, func() { chClient.Close() })
		storage.Events = chrepo.NewEventArchive(chClient.Conn())
		log.Info("ClickHouse event archive enabled")
	}

	if cfg.Redis.Enabled() {
		redisClient, err := redis.NewClient(cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		closers = append(closers, func() { redisClient.Close() })
		storage.Reports = redisrepo.NewReportCache(redisClient.Client(), cfg.Redis.ReportTTL)
		log.Info("Redis report cache enabled")
	}

	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
		closers = append(closers, func() { producer.Close() })
		publisher = events.NewPublisher(producer, cfg.Kafka.Topic)
		log.Info("Kafka event publishing enabled")
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	return storage, publisher, closeAll
}
