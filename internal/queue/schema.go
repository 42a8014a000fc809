package queue

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
)

// schemaSQL creates the jobs table. Each row is one lecture: its deck source,
// narration style, voice and language pair, the stage it last reached, and
// deck_json, the checkpointed slide list every stage reads and extends.
// Reruns point back at the job they came from through parent_job_id.
//
//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes. There are no
// migrations; an outdated database has to be cleared.
const schemaVersion = 1

// ErrSchemaMismatch reports a job database written by another schema.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	var tables int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tables); err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tables == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return schemaMismatch(fmt.Sprintf("database has version %d, expected %d", version, schemaVersion))
	}

	// A matching version with missing columns means the file was edited or
	// written by a development build; resuming would lose slide checkpoints.
	present, err := s.tableColumns(ctx, "jobs")
	if err != nil {
		return err
	}
	var missing []string
	for _, col := range strings.Split(jobColumns, ",") {
		col = strings.TrimSpace(col)
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return schemaMismatch("jobs table lacks " + strings.Join(missing, ", "))
	}
	return nil
}

func schemaMismatch(detail string) error {
	return fmt.Errorf("%w: %s (run 'slidecast job clear' or delete the database)", ErrSchemaMismatch, detail)
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create jobs table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}
