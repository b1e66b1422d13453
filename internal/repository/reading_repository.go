package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"LabPulse/internal/domain/models"
	"LabPulse/internal/domain/repository"
	pkgch "LabPulse/pkg/clickhouse"
	pkgkafka "LabPulse/pkg/kafka"
)

const insertColumns = "(id, user_id, report_id, name, value, unit, ref_min, ref_max, recorded_at)"

// ClickHouseStorage implements Storage for ClickHouse.
type ClickHouseStorage struct {
	ch       *pkgch.Client
	db       *sql.DB
	database string
	table    string
	chunk    int
}

// NewClickHouseStorage writes into database.table.
func NewClickHouseStorage(ch *pkgch.Client, database, table string) *ClickHouseStorage {
	return &ClickHouseStorage{ch: ch, db: ch.DB(), database: database, table: table, chunk: 2000}
}

// SetChunkSize sets the rows per INSERT statement.
func (s *ClickHouseStorage) SetChunkSize(n int) {
	if n > 0 {
		s.chunk = n
	}
}

// Init creates the database and readings table if missing.
func (s *ClickHouseStorage) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, pkgch.ReadingsSchema(s.database, s.table))
}

func (s *ClickHouseStorage) Store(ctx context.Context, r *models.Reading) error {
	return s.StoreBatch(ctx, []*models.Reading{r})
}

// StoreBatch inserts readings as multi-row VALUES in chunks to reduce round-trips.
func (s *ClickHouseStorage) StoreBatch(ctx context.Context, readings []*models.Reading) error {
	for start := 0; start < len(readings); start += s.chunk {
		end := start + s.chunk
		if end > len(readings) {
			end = len(readings)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, r := range readings[start:end] {
			if r == nil || r.Name == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				r.ID,
				r.UserID,
				r.ReportID,
				r.Name,
				r.Value,
				r.Unit,
				r.RefMin,
				r.RefMax,
				r.RecordedAt.UTC(),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s.%s %s VALUES %s", s.database, s.table, insertColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert readings: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool is owned by the clickhouse client.
func (s *ClickHouseStorage) Close() error { return nil }

// KafkaPublisher implements Publisher by emitting ReadingEvents keyed by user.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, r *models.Reading) error {
	return p.producer.Publish(ctx, p.topic, userKey(r.UserID), models.NewReadingEvent(r))
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, readings []*models.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(readings))
	for i, r := range readings {
		msgs[i] = pkgkafka.Message{
			Key:   userKey(r.UserID),
			Value: models.NewReadingEvent(r),
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// userKey keeps one user's readings on a single partition, preserving order.
func userKey(userID int64) []byte { return []byte(strconv.FormatInt(userID, 10)) }

var (
	_ repository.Storage      = (*ClickHouseStorage)(nil)
	_ repository.Publisher    = (*KafkaPublisher)(nil)
	_ repository.ReadingStore = (*CHReadingStore)(nil)
)
