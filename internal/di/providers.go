package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"LabPulse/internal/domain/repository"
	"LabPulse/internal/handler/api"
	mid "LabPulse/internal/middleware"
	internalrepo "LabPulse/internal/repository"
	icache "LabPulse/internal/service/cache"
	"LabPulse/internal/service/ratelimit"
	"LabPulse/internal/service/stream"
	"LabPulse/internal/services/analytics"
	"LabPulse/internal/usecase"
	pkgch "LabPulse/pkg/clickhouse"
	"LabPulse/pkg/config"
	pkgkafka "LabPulse/pkg/kafka"
	applogger "LabPulse/pkg/logger"
	"LabPulse/pkg/metrics"
	"LabPulse/pkg/queue"
	"LabPulse/pkg/server"
)

// ProvideLogger builds the application logger from the logging section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Logging.Config)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisClient returns nil when redis is disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return icache.NewRedisClient(icache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideCache shares analytics responses through redis when available and
// falls back to a process-local TTL cache.
func ProvideCache(cli *redis.Client) icache.BytesCache {
	if cli != nil {
		return icache.NewRedisCache(cli, "labpulse:cache:")
	}
	return icache.NewTTLCache()
}

func usesClickHouse(cfg *config.Config) bool {
	return cfg.Backend.Type == config.BackendClickHouse || cfg.Backend.Type == config.BackendKafka
}

// ProvideClickHouseClient creates a ClickHouse client and bootstraps the
// readings table. It returns nil for the memory backend.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !usesClickHouse(cfg) {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, pkgch.ReadingsSchema(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideMemoryStore is the in-process store used by the memory backend.
func ProvideMemoryStore() *internalrepo.MemoryStore {
	return internalrepo.NewMemoryStore()
}

// ProvideStorage selects where ingested readings are written.
func ProvideStorage(cfg *config.Config, ch *pkgch.Client, mem *internalrepo.MemoryStore) repository.Storage {
	if ch == nil {
		return mem
	}
	s := internalrepo.NewClickHouseStorage(ch, cfg.ClickHouse.Database, cfg.ClickHouse.Table)
	s.SetChunkSize(cfg.Backend.BatchSize)
	return s
}

// ProvideReadingStore selects where analytics read from.
func ProvideReadingStore(cfg *config.Config, ch *pkgch.Client, mem *internalrepo.MemoryStore, l *applogger.Logger) repository.ReadingStore {
	if ch == nil {
		return mem
	}
	s := internalrepo.NewCHReadingStore(ch, cfg.ClickHouse.QualifiedTable())
	s.SetLogger(l)
	return s
}

// ProvideKafkaProducer creates a Kafka producer for the kafka backend.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Backend.Type != config.BackendKafka {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideReadingPublisher wraps the producer; nil outside the kafka backend.
func ProvideReadingPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideKafkaConsumer creates the readings consumer for the kafka backend.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != config.BackendKafka {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook{}))
	return consumer, nil
}

// ProvideHub returns nil when the live stream is disabled.
func ProvideHub(cfg *config.Config, l *applogger.Logger) *stream.Hub {
	if !cfg.Stream.Enabled {
		return nil
	}
	return stream.NewHub(l,
		stream.WithWriteTimeout(cfg.Stream.WriteTimeout),
		stream.WithPingInterval(cfg.Stream.PingInterval),
		stream.WithBufferSize(cfg.Stream.BufferSize),
	)
}

// ProvideIngestFanout wires stored-batch side effects. A nil hub must not
// become a non-nil EventSink.
func ProvideIngestFanout(hub *stream.Hub, c icache.BytesCache, store repository.ReadingStore, l *applogger.Logger) *usecase.IngestFanout {
	var sink repository.EventSink
	if hub != nil {
		sink = hub
	}
	return usecase.NewIngestFanout(sink, c, store, analytics.NewZScoreDetector(), l)
}

// ProvideReadingProcessor creates the backend router.
func ProvideReadingProcessor(
	pub repository.Publisher,
	store repository.Storage,
	metrics repository.Metrics,
	fanout *usecase.IngestFanout,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.ReadingProcessor {
	p := usecase.NewReadingProcessor(pub, store, metrics, fanout, cfg.Backend.Type, l)
	p.SetTimeout(cfg.Backend.BatchTimeout)
	return p
}

// ProvideIngestPipeline builds the validate/throttle/buffer stage in front of
// the processor, shared by HTTP ingest and the queue collector.
func ProvideIngestPipeline(proc *usecase.ReadingProcessor, metrics repository.Metrics, cfg *config.Config, l *applogger.Logger) *mid.IngestPipeline {
	return mid.NewIngestPipeline(proc, metrics, l,
		mid.WithMaxRPS(cfg.Ingest.MaxRPS),
		mid.WithBufferSize(cfg.Ingest.BufferSize),
		mid.WithRetry(cfg.Ingest.RetryMax, cfg.Ingest.RetryDelay),
	)
}

// ProvideKafkaReadingsHandler handles the readings topic.
func ProvideKafkaReadingsHandler(store repository.Storage, metrics repository.Metrics, fanout *usecase.IngestFanout, cfg *config.Config, l *applogger.Logger) *usecase.KafkaReadingsHandler {
	return usecase.NewKafkaReadingsHandler(cfg.Kafka.Topic, store, metrics, fanout, l)
}

// ProvideReadingCollector drains queued ingest jobs into the pipeline.
func ProvideReadingCollector(pipe *mid.IngestPipeline, metrics repository.Metrics) *usecase.ReadingCollector {
	return usecase.NewReadingCollector(pipe, metrics)
}

// ProvideIngestQueue consumes ingest jobs from redis; nil when redis is disabled.
func ProvideIngestQueue(cfg *config.Config, cli *redis.Client, collector *usecase.ReadingCollector, l *applogger.Logger) *queue.Consumer {
	if cli == nil {
		return nil
	}
	return queue.NewConsumer(l, cli, cfg.Ingest.QueueKey, queue.Config{
		Workers:    cfg.Ingest.Workers,
		RetryLimit: cfg.Ingest.RetryMax,
		RetryDelay: cfg.Ingest.RetryDelay,
	}, collector)
}

// ProvideBiomarkerAnalytics wires the three engines over the reading store.
func ProvideBiomarkerAnalytics(store repository.ReadingStore, cfg *config.Config) *usecase.BiomarkerAnalytics {
	return usecase.NewBiomarkerAnalytics(
		store,
		analytics.NewTrendForecaster(),
		analytics.NewRuleRiskScorer(),
		analytics.NewZScoreDetector(),
		cfg.Analytics.MaxReadings,
	)
}

func ProvideInsightsUseCase(ba *usecase.BiomarkerAnalytics, cfg *config.Config) *usecase.InsightsUseCase {
	return usecase.NewInsightsUseCase(ba, cfg.Analytics.InsightsTimeout)
}

// ProvideBiomarkersHandler creates the HTTP API handler.
func ProvideBiomarkersHandler(
	l *applogger.Logger,
	ba *usecase.BiomarkerAnalytics,
	insights *usecase.InsightsUseCase,
	pipe *mid.IngestPipeline,
	hub *stream.Hub,
	c icache.BytesCache,
	cfg *config.Config,
) *api.BiomarkersHandler {
	h := api.NewBiomarkersHandler(l, ba, insights, pipe, hub)
	h.SetCache(c, cfg.Analytics.CacheTTL)
	h.SetLimiter(ratelimit.New(cfg.Analytics.RateLimit.Capacity, cfg.Analytics.RateLimit.RefillPerSec))
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.BiomarkersHandler,
	hub *stream.Hub,
	collector *usecase.ReadingCollector,
	proc *usecase.ReadingProcessor,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaReadingsHandler,
	ingestQueue *queue.Consumer,
	storage repository.Storage,
	redisClient *redis.Client,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, l, server.Deps{
		Handler:     handler,
		Hub:         hub,
		Collector:   collector,
		Processor:   proc,
		Consumer:    consumer,
		KafkaReader: kh,
		IngestQueue: ingestQueue,
		Storage:     storage,
		Redis:       redisClient,
		ClickHouse:  chClient,
	})
}
