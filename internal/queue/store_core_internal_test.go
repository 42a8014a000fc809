package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type codedError int

func (e codedError) Error() string { return fmt.Sprintf("sqlite error %d", int(e)) }

func (e codedError) Code() int { return int(e) }

func TestIsLocked(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busy", codedError(5), true},
		{"busy snapshot", fmt.Errorf("save deck: %w", codedError(517)), true},
		{"busy recovery", codedError(261), true},
		{"constraint", codedError(19), false},
		{"locked text", errors.New("database is locked"), true},
		{"other text", errors.New("no such table: jobs"), false},
	}
	for _, tc := range cases {
		if got := isLocked(tc.err); got != tc.want {
			t.Fatalf("%s: isLocked = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestExecStopsRetryingOnCancelledContext(t *testing.T) {
	store, err := OpenPath(t.TempDir() + "/jobs.db")
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	affected, err := store.exec(context.Background(), `DELETE FROM jobs WHERE id = ?`, "missing")
	if err != nil || affected != 0 {
		t.Fatalf("exec = %d, %v", affected, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.exec(ctx, `DELETE FROM jobs WHERE id = ?`, "missing"); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}

func TestOpenRejectsOutdatedJobsTable(t *testing.T) {
	cases := []struct {
		name    string
		ddl     string
		version int
		want    string
	}{
		{
			name:    "old version",
			ddl:     `CREATE TABLE jobs (id TEXT PRIMARY KEY)`,
			version: schemaVersion + 1,
			want:    "expected 1",
		},
		{
			name:    "missing checkpoint column",
			ddl:     `CREATE TABLE jobs (id TEXT PRIMARY KEY, source_path TEXT, status TEXT)`,
			version: schemaVersion,
			want:    "deck_json",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := t.TempDir() + "/jobs.db"
			seed, err := OpenPath(path)
			if err != nil {
				t.Fatalf("OpenPath: %v", err)
			}
			for _, stmt := range []string{
				`DROP TABLE jobs`,
				tc.ddl,
				`UPDATE schema_version SET version = ` + fmt.Sprint(tc.version),
			} {
				if _, err := seed.db.Exec(stmt); err != nil {
					t.Fatalf("%s: %v", stmt, err)
				}
			}
			_ = seed.Close()

			_, err = OpenPath(path)
			if !errors.Is(err, ErrSchemaMismatch) {
				t.Fatalf("expected ErrSchemaMismatch, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
