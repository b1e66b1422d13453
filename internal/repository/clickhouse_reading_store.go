package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"LabPulse/internal/domain/models"
	domrepo "LabPulse/internal/domain/repository"
	pkgch "LabPulse/pkg/clickhouse"
	applogger "LabPulse/pkg/logger"
)

// CHReadingStore implements ReadingStore backed by ClickHouse.
type CHReadingStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewCHReadingStore reads from the fully qualified table (database.table).
func NewCHReadingStore(ch *pkgch.Client, table string) *CHReadingStore {
	return &CHReadingStore{db: ch.DB(), table: table, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHReadingStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CHReadingStore) ListReadings(ctx context.Context, q domrepo.ReadingQuery) ([]models.Reading, error) {
	start := time.Now()
	query, args := buildListQuery(s.table, q)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.l.Error("clickhouse list_readings query error",
			applogger.Int64("user_id", q.UserID),
			applogger.String("name", q.NameContains),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	out := make([]models.Reading, 0, 256)
	for rows.Next() {
		var (
			r              models.Reading
			refMin, refMax sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.ReportID, &r.Name, &r.Value, &r.Unit, &refMin, &refMax, &r.RecordedAt); err != nil {
			s.l.Error("clickhouse list_readings scan error",
				applogger.Int64("user_id", q.UserID),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		if refMin.Valid {
			r.RefMin = models.Ref(refMin.Float64)
		}
		if refMax.Valid {
			r.RefMax = models.Ref(refMax.Float64)
		}
		r.RecordedAt = r.RecordedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	s.l.Debug("clickhouse list_readings ok",
		applogger.Int64("user_id", q.UserID),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHReadingStore) ListNames(ctx context.Context, userID int64) ([]string, error) {
	q := fmt.Sprintf(`
        SELECT name
        FROM %s
        WHERE user_id = ?
        GROUP BY name
        ORDER BY min(recorded_at) ASC, name ASC
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		s.l.Error("clickhouse list_names query error", applogger.Int64("user_id", userID), applogger.Error(err))
		return nil, fmt.Errorf("list names: %w", err)
	}
	defer rows.Close()
	return scanNames(rows)
}

type nameRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanNames never returns a nil slice so an empty user encodes as [].
func scanNames(rows nameRows) ([]string, error) {
	names := make([]string, 0)
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return names, nil
}

func buildListQuery(table string, q domrepo.ReadingQuery) (string, []interface{}) {
	var b strings.Builder
	args := []interface{}{q.UserID}

	fmt.Fprintf(&b, `SELECT id, user_id, report_id, name, value, unit, ref_min, ref_max, recorded_at
        FROM %s
        WHERE user_id = ?`, table)
	if q.NameContains != "" {
		b.WriteString(" AND positionCaseInsensitiveUTF8(name, ?) > 0")
		args = append(args, q.NameContains)
	}
	if q.Order == domrepo.OrderDesc {
		b.WriteString(" ORDER BY recorded_at DESC")
	} else {
		b.WriteString(" ORDER BY recorded_at ASC")
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return b.String(), args
}
