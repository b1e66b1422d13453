package clickhouse

import "fmt"

// ReadingsSchema returns the DDL for the readings table. Rows are ordered by
// (user_id, name, recorded_at) so per-user scans stay local.
func ReadingsSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    id          String,
    user_id     Int64,
    report_id   String,
    name        String,
    value       Float64,
    unit        String,
    ref_min     Nullable(Float64),
    ref_max     Nullable(Float64),
    recorded_at DateTime64(3, 'UTC'),
    ingested_at DateTime64(3, 'UTC') DEFAULT now64(3)
) ENGINE = ReplacingMergeTree(ingested_at)
ORDER BY (user_id, name, recorded_at, id)`, database, table),
	}
}
