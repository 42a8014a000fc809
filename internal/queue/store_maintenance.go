package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// DatabaseHealth captures diagnostic information about the job database.
type DatabaseHealth struct {
	Path           string
	SchemaVersion  int
	MissingColumns []string
	IntegrityOK    bool
	TotalJobs      int
}

// Healthy reports whether the database matches the expected schema and
// passed the integrity check.
func (h DatabaseHealth) Healthy() bool {
	return h.SchemaVersion == schemaVersion && len(h.MissingColumns) == 0 && h.IntegrityOK
}

// CheckHealth inspects the open database: schema version, the columns the
// store reads, the SQLite integrity check and the job count.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{Path: s.path}
	if s.db == nil {
		return health, errors.New("job database connection unavailable")
	}
	if info, err := os.Stat(s.path); err != nil {
		return health, fmt.Errorf("stat job database: %w", err)
	} else if info.IsDir() {
		return health, fmt.Errorf("job database path %q is a directory", s.path)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.QueryRowContext(checkCtx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil {
		return health, fmt.Errorf("read schema version: %w", err)
	}

	present, err := s.tableColumns(checkCtx, "jobs")
	if err != nil {
		return health, err
	}
	for _, col := range strings.Split(jobColumns, ",") {
		col = strings.TrimSpace(col)
		if _, ok := present[col]; !ok {
			health.MissingColumns = append(health.MissingColumns, col)
		}
	}

	var integrity string
	if err := s.db.QueryRowContext(checkCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityOK = strings.EqualFold(integrity, "ok")

	if err := s.db.QueryRowContext(checkCtx, "SELECT COUNT(1) FROM jobs").Scan(&health.TotalJobs); err != nil {
		return health, fmt.Errorf("count jobs: %w", err)
	}
	return health, nil
}

func (s *Store) tableColumns(ctx context.Context, table string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols[name] = struct{}{}
	}
	return cols, rows.Err()
}
